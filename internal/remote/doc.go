// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package remote talks to the devices. It opens one SSH session per device,
// runs the RouterOS backup command and optionally downloads the produced
// file over SFTP. Connections are never shared or pooled.
package remote
