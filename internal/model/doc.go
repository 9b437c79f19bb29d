// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the declarative description of a class: the ordered
// ClassSpec consumed by the factory, and the HCL class resources it is parsed
// from.
//
// # Core Concepts
//
//   - Spec: An ordered mapping of property names to values. A reserved subset
//     of keys (extend, mixins, statics, inheritableStatics, config, requires,
//     uses, preprocessors) is recognized by the built-in preprocessors, which
//     delete each key as they consume it. Everything else becomes an own
//     member of the class.
//
//   - Definition: A Spec paired with the class name and the file it came from.
//     Every `class` block of a resource yields one Definition.
//
//   - FSInfo: Metadata that links a Definition back to its source file, used
//     for error reporting and for declaration mismatch diagnostics.
//
// Why a separate model package?
//
// The factory and the loader never see HCL. They work on Specs, which can be
// produced by a resource file or assembled directly in Go by an embedding
// program. Keeping the parsing here means the construction pipeline has a
// single, format-agnostic input, and HCL diagnostics are reported with file
// positions before any class is defined.
package model
