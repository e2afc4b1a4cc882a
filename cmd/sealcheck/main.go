// Command sealcheck verifies canonical hashes of forensic telemetry records.
package main

import "github.com/qube-forensics/sealcheck/internal/cli"

func main() {
	cli.Execute()
}
