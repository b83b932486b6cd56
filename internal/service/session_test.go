package service

import (
	"context"
	"testing"
	"time"

	"halaqa-points-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedAuth string

func (a fixedAuth) CurrentUserID(ctx context.Context) (string, bool) {
	return string(a), a != ""
}

func TestSession(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sess := NewSession(ctx, fixedAuth("u1"), s)
	defer sess.Close()
	assert.Equal(t, "u1", sess.UserID())

	_, err := sess.Credit(ctx, 100)
	require.NoError(t, err)
	_, err = sess.Spend(ctx, 60, "frame_gold")
	require.NoError(t, err)
	_, err = sess.Equip(ctx, model.SlotFrame, "frame_gold")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := sess.State()
		return st.Balance == 40 && st.Equipped.Frame == "frame_gold"
	}, 2*time.Second, 5*time.Millisecond)

	_, err = sess.Spend(ctx, 60, "frame_gold")
	assert.ErrorIs(t, err, ErrAlreadyOwned)
}

func TestSession_Unauthenticated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sess := NewSession(ctx, fixedAuth(""), s)
	defer sess.Close()

	assert.Empty(t, sess.UserID())
	assert.False(t, sess.State().Loading)

	_, err := sess.Credit(ctx, 10)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = sess.Spend(ctx, 10, "a")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = sess.Equip(ctx, model.SlotBadge, "a")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
