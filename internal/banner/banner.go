// Package banner renders the CLI start-up banner.
package banner

import "fmt"

const art = `
      _         _                   _
  ___| |_ ___ _| |___ ___ ___ _| |___
 |  _|  _|  _| . | -_|  _| . | . | -_|
 |___|_| |___|___|___|___|___|___|___|
`

// Banner returns the banner followed by the version line.
func Banner(version string) string {
	return fmt.Sprintf("%s\n  CTC beam search decoder %s\n\n", art, version)
}
