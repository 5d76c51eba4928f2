// Command kpictl runs KPI reports and manages the KPI tables from the shell.
package main

import (
	"fmt"
	"os"

	"kpiboard/internal/kpictl"
)

func main() {
	if err := kpictl.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
