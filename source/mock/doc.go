// Package mock provides a test double for source.VectorSource.
package mock
