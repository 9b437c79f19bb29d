// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the FSInfo struct, which stores file system metadata.
//
// Why store the file path?
//
// A class resource is fetched because the loader expected it to declare a
// particular class. When it does not, the only useful diagnostic is the pair
// of class name and resolved path, so every Definition keeps the path it was
// parsed from.
package model

type FSInfo struct {
	FilePath string
}

func NewFSInfo(filePath string) *FSInfo {
	return &FSInfo{
		FilePath: filePath,
	}
}
