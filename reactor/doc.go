// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides completion-style socket operations: an operation
// is issued against a reusable Operation context and either completes
// synchronously on the issuing call or later through its completion callback.
package reactor
