// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
)

// PushWorker matches *push.Service's Serve method.
type PushWorker interface {
	Serve(ctx context.Context) error
}

// PushService supervises the web-push fan-out worker.
type PushService struct {
	worker PushWorker
}

// NewPushService wraps the worker.
func NewPushService(worker PushWorker) *PushService {
	return &PushService{worker: worker}
}

// Serve implements suture.Service.
func (s *PushService) Serve(ctx context.Context) error {
	return s.worker.Serve(ctx)
}

// String names the service in supervisor logs.
func (s *PushService) String() string {
	return "push-worker"
}
