package eventheader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tuanvumaihuynh/ledger/pkg/correlationid"
	"github.com/tuanvumaihuynh/ledger/pkg/eventheader"
)

func TestBuild(t *testing.T) {
	headers := eventheader.Build(context.Background())
	assert.NotContains(t, headers, correlationid.Header)

	ctx := correlationid.NewContext(context.Background(), "sweep-1")
	headers = eventheader.Build(ctx)
	assert.Equal(t, "sweep-1", headers[correlationid.Header])
}
