package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRoomInput struct {
	RoomID   string `json:"roomNumber" validate:"required,max=64"`
	MediaRef string `json:"roomUrl" validate:"required"`
	TabID    string `json:"tabId" validate:"required,numeric"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(createRoomInput{RoomID: "42", MediaRef: "http://x/video.mp4", TabID: "7"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = v.Validate(createRoomInput{RoomID: "42", TabID: "abc"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "roomUrl", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[0].Code)
	assert.Equal(t, "tabId", errs[1].Field)
	assert.Equal(t, "NUMERIC", errs[1].Code)
	assert.Equal(t, "roomUrl is required; tabId must be numeric", Summary(errs))
}
