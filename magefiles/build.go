//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for dbstarter using Mage.
//
// Usage:
//
//	mage build          Compile dbstarter to bin/
//	mage test:all       Run every test
//	mage test:race      Run every test with the race detector
//	mage test:cover     Write coverage.out and print per-function coverage
//	mage lint           Run golangci-lint
//	mage sample         Run init and start twice in a scratch directory
//	mage clean          Remove build artifacts
//	mage install        Install dbstarter to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "dbstarter"
	binaryDir  = "bin"
	cmdDir     = "./cmd/dbstarter"
	sampleDir  = "sample"
)

// Build compiles the dbstarter binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts and the sample directory.
func Clean() error {
	for _, dir := range []string{binaryDir, sampleDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Sample builds the binary, runs init in sample/ and starts twice so the
// second run shows the ledger update path.
func Sample() error {
	mg.Deps(Build)
	if err := os.MkdirAll(sampleDir, 0o755); err != nil {
		return err
	}
	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(sampleDir); err != nil {
		return err
	}
	defer os.Chdir(wd)

	for i, args := range [][]string{{"init"}, {"start"}, {"start", "--json"}} {
		fmt.Printf("--- step %d: dbstarter %v\n", i+1, args)
		if err := sh.RunV(bin, args...); err != nil {
			return err
		}
	}
	return nil
}
