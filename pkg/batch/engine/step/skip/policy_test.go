package skip_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dryik/migration-tool/pkg/batch/engine/step/skip"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

func TestShouldSkip_Unlimited(t *testing.T) {
	p := skip.NewDefaultSkipPolicyFactory().Create(0, nil)

	for i := 0; i < 100; i++ {
		assert.True(t, p.ShouldSkip(exception.NewApplicationError("gateway", "rejected", nil)))
		p.IncrementSkipCount()
	}
	assert.True(t, p.CanSkip())
	assert.Equal(t, 100, p.GetSkipCount())
	assert.Equal(t, 0, p.GetSkipLimit())
}

func TestShouldSkip_Limit(t *testing.T) {
	p := skip.NewDefaultSkipPolicyFactory().Create(2, nil)
	appErr := exception.NewApplicationError("gateway", "rejected", nil)

	assert.True(t, p.ShouldSkip(appErr))
	p.IncrementSkipCount()
	assert.True(t, p.ShouldSkip(exception.NewConnectivityError("gateway", "timeout", nil)))
	p.IncrementSkipCount()

	assert.False(t, p.CanSkip())
	assert.False(t, p.ShouldSkip(appErr))
}

func TestShouldSkip_Fatal(t *testing.T) {
	authErr := exception.NewAuthenticationError("gateway", "session expired", nil)

	assert.False(t, skip.NewDefaultSkipPolicyFactory().Create(0, nil).ShouldSkip(authErr))
	assert.True(t, skip.NewDefaultSkipPolicyFactory().Create(0, []string{"session expired"}).ShouldSkip(authErr))
	assert.True(t, skip.NewDefaultSkipPolicyFactory().Create(0, nil).ShouldSkip(errors.New("bad value")))
	assert.False(t, skip.NewDefaultSkipPolicyFactory().Create(0, nil).ShouldSkip(nil))
}
