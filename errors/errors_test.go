package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapFormatsContext(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Session", "CacheRequest", "send")
	require.Error(t, err)
	assert.Equal(t, "Session.CacheRequest: send failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, Wrap(nil, "Session", "CacheRequest", "send"))
}

func TestClassifiedWrapping(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(ErrNotFound, "Container", "GetField", "lookup")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Container", ce.Component)
			assert.True(t, stderrors.Is(err, ErrNotFound))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidConversion))
	assert.Equal(t, ErrorInvalid, Classify(ErrMalformedData))
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidSession))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionTimeout))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("anything else")))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	inner := WrapInvalid(ErrInvalidParam, "Message", "SetAttachment", "validate")
	outer := fmt.Errorf("delivery: %w", inner)
	assert.True(t, IsInvalid(outer))
	assert.False(t, IsTransient(outer))
	assert.False(t, IsFatal(outer))
}
