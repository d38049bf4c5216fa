package validator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/ledger/pkg/validator"
)

type color uint8

func (c color) Validate() error {
	if c > 2 {
		return errors.New("unknown color")
	}
	return nil
}

type schedule struct {
	Spec  string `validate:"required,cron"`
	Color color  `validate:"enum"`
}

func TestDefaultValidator(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      schedule
		wantErr bool
	}{
		{name: "daily at midnight", in: schedule{Spec: "0 0 * * *"}},
		{name: "every five minutes", in: schedule{Spec: "*/5 * * * *", Color: 2}},
		{name: "six fields", in: schedule{Spec: "0 0 0 * * *"}, wantErr: true},
		{name: "garbage", in: schedule{Spec: "midnight"}, wantErr: true},
		{name: "empty", in: schedule{}, wantErr: true},
		{name: "bad enum", in: schedule{Spec: "0 0 * * *", Color: 7}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, validator.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
