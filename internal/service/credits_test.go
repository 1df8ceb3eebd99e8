package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

func TestCreditService_Balance(t *testing.T) {
	users := newStubUserRepo()
	users.users["user-1"] = &model.User{ID: "user-1", Credits: 2.5}
	svc := NewCreditService(users, 1, discardLogger())

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2.5, balance)
}

func TestCreditService_Balance_UnknownUser(t *testing.T) {
	svc := NewCreditService(newStubUserRepo(), 1, discardLogger())

	_, err := svc.Balance(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestCreditService_Debit(t *testing.T) {
	users := newStubUserRepo()
	users.users["user-1"] = &model.User{ID: "user-1", Credits: 3}
	svc := NewCreditService(users, 1, discardLogger())

	require.NoError(t, svc.Debit(context.Background(), "user-1"))
	assert.Equal(t, 2.0, users.users["user-1"].Credits)
}

func TestCreditService_Debit_InsufficientCredits(t *testing.T) {
	users := newStubUserRepo()
	users.users["user-1"] = &model.User{ID: "user-1", Credits: 0.5}
	svc := NewCreditService(users, 1, discardLogger())

	err := svc.Debit(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsPaymentRequired(err))
	// Balance untouched when admission fails
	assert.Equal(t, 0.5, users.users["user-1"].Credits)
}

func TestCreditService_Refund(t *testing.T) {
	users := newStubUserRepo()
	users.users["user-1"] = &model.User{ID: "user-1", Credits: 0}
	svc := NewCreditService(users, 1, discardLogger())

	require.NoError(t, svc.Refund(context.Background(), "user-1"))
	assert.Equal(t, 1.0, users.users["user-1"].Credits)
}

func TestCreditService_CustomJobCost(t *testing.T) {
	users := newStubUserRepo()
	users.users["user-1"] = &model.User{ID: "user-1", Credits: 5}
	svc := NewCreditService(users, 2.5, discardLogger())

	require.NoError(t, svc.Debit(context.Background(), "user-1"))
	assert.Equal(t, 2.5, users.users["user-1"].Credits)

	require.Error(t, svc.Debit(context.Background(), "user-1"))
	require.NoError(t, svc.Refund(context.Background(), "user-1"))
	assert.Equal(t, 5.0, users.users["user-1"].Credits)
}
