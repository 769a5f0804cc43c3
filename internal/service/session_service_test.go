package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionOpenCreatesNew(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewSessionService(store)

	session, resumed, err := svc.Open(context.Background(), 7, 42)

	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, model.SessionInProgress, session.Status)
	assert.Equal(t, 1, session.CurrentStep)
}

func TestSessionOpenResumesExisting(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewSessionService(store)

	first, _, err := svc.Open(context.Background(), 7, 42)
	require.NoError(t, err)

	second, resumed, err := svc.Open(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionOpenBlockedAfterTermination(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewSessionService(store)

	session, _, err := svc.Open(context.Background(), 7, 42)
	require.NoError(t, err)
	require.NoError(t, svc.Close(context.Background(), session.ID, model.SessionTerminated))

	_, _, err = svc.Open(context.Background(), 7, 42)
	assert.ErrorIs(t, err, util.ErrSessionTerminated)
}

func TestSessionOpenRetriesTransientFailure(t *testing.T) {
	store := newFakeSessionStore()
	store.createErr = []error{errors.New("deadlock"), nil}
	svc := NewSessionService(store)

	start := time.Now()
	session, resumed, err := svc.Open(context.Background(), 7, 42)

	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEmpty(t, session.ID)
	// 第一次失败后退避了约1秒
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestSessionOpenGivesUpAfterRetries(t *testing.T) {
	store := newFakeSessionStore()
	boom := errors.New("db down")
	store.createErr = []error{boom, boom, boom}
	svc := NewSessionService(store)

	_, _, err := svc.Open(context.Background(), 7, 42)
	assert.ErrorIs(t, err, boom)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewSessionService(store)

	session, _, err := svc.Open(context.Background(), 7, 42)
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), session.ID, model.SessionSubmitted))
	closed, err := svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	firstEnd := *closed.EndedAt

	// 二次关闭不报错也不改写结束时间
	require.NoError(t, svc.Close(context.Background(), session.ID, model.SessionTerminated))
	again, err := svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionSubmitted, again.Status)
	assert.Equal(t, firstEnd, *again.EndedAt)
}

func TestSessionGetNotFound(t *testing.T) {
	svc := NewSessionService(newFakeSessionStore())
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}
