//go:build mage

package main

import (
	"fmt"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default is the target run when mage is invoked without arguments.
var Default = Build

const binaryName = "smart-events"

// Build compiles the server binary with the version stamped in.
func Build() error {
	version, err := gitVersion()
	if err != nil {
		version = "dev"
	}

	ldflags := fmt.Sprintf("-s -w -X github.com/ferreiramx/smart-events/internal/cli.Version=%s", version)
	output := binaryName
	if runtime.GOOS == "windows" {
		output += ".exe"
	}
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags, "-o", output, "./cmd/smart-events")
}

// Test runs the full test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs go vet and checks formatting.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("gofmt needed:\n%s", out)
	}
	return nil
}

// Check runs lint and tests.
func Check() {
	mg.SerialDeps(Lint, Test)
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm(binaryName)
}

func gitVersion() (string, error) {
	return sh.Output("git", "describe", "--tags", "--always", "--dirty")
}
