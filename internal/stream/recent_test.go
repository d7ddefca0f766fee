package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessor_RecentReturnsValuesOldestFirst(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()

	for i := 1; i <= 5; i++ {
		p.Ingest("pair:ETH/USDT", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	values := p.Recent("pair:ETH/USDT", 10)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, values)
}

func TestProcessor_RecentTruncatesToLastN(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()

	for i := 1; i <= 5; i++ {
		p.Ingest("pair:ETH/USDT", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	values := p.Recent("pair:ETH/USDT", 2)
	assert.Equal(t, []float64{4, 5}, values)
}

func TestProcessor_RecentOnUnknownStreamIsEmpty(t *testing.T) {
	p := newTestProcessor(t)
	assert.Empty(t, p.Recent("pair:unknown", 10))
}
