package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("127.0.0.1:7878"))
	assert.NoError(t, ValidateAddress("[::1]:80"))
	assert.NoError(t, ValidateAddress(":8080"))
	assert.Error(t, ValidateAddress("localhost"))
	assert.Error(t, ValidateAddress("localhost:"))
}

func TestValidateInt(t *testing.T) {
	assert.NoError(t, ValidateInt("0", 0))
	assert.NoError(t, ValidateInt("8", 1))
	assert.EqualError(t, ValidateInt("0", 1), "must be at least 1")
	assert.EqualError(t, ValidateInt("four", 0), "must be a valid integer")
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration("30s"))
	assert.NoError(t, ValidateDuration("0s"))
	assert.Error(t, ValidateDuration("-1s"))
	assert.Error(t, ValidateDuration("soon"))
}

func TestValidateByteSize(t *testing.T) {
	assert.NoError(t, ValidateByteSize("4KiB"))
	assert.NoError(t, ValidateByteSize("1048576"))
	assert.Error(t, ValidateByteSize("lots"))
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(fmt.Errorf("wrapped: %w", ErrAborted)))
	assert.False(t, IsAborted(errors.New("other")))

	assert.Equal(t, ErrAborted, wrapError(promptui.ErrInterrupt))
	assert.Nil(t, wrapError(nil))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Overwrite?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}
