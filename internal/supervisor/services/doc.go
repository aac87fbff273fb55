// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package services wraps the application's long-running components as
// suture.Service implementations. Each wrapper adapts one component's
// run loop to suture's context-aware Serve pattern and names it for
// supervisor logs.
package services
