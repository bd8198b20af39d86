// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"fmt"
	"strings"
)

// BackupFileExt is the extension RouterOS appends to saved backups.
const BackupFileExt = ".backup"

var routerOSEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

// BackupCommand returns the RouterOS command that saves an encrypted backup.
func BackupCommand(filename, password string) string {
	return fmt.Sprintf(`system backup save name="%s" password="%s" encryption=aes-sha256`,
		routerOSEscaper.Replace(filename), routerOSEscaper.Replace(password))
}
