// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vm

import "github.com/kraklabs/jjs/bytecode"

// BacktraceFrame is one entry of a captured call chain: the source name
// the frame's bytecode was parsed with and the bytecode offset active
// when the frame was captured.
type BacktraceFrame struct {
	SourceName string
	IP         int
	IsEval     bool
}

// CaptureBacktrace walks f's Caller chain independent of exception
// throwing, used for both thrown-Error `.stack` text and debugger-style
// introspection (jjs.Context.Backtrace). maxFrames <= 0 means unbounded.
// CurrentBacktrace captures the backtrace of whichever frame is
// currently executing on vm, the entry point a native routine handler
// or the public jjs API uses (neither has a *Frame in hand the way
// exec.go's opcode dispatch does). Returns nil if no frame is active.
func (vm *VM) CurrentBacktrace(maxFrames int) []BacktraceFrame {
	if vm.currentFrame == nil {
		return nil
	}
	return CaptureBacktrace(vm.currentFrame, maxFrames)
}

func CaptureBacktrace(f *Frame, maxFrames int) []BacktraceFrame {
	var frames []BacktraceFrame
	for cur := f; cur != nil; cur = cur.Caller {
		frames = append(frames, BacktraceFrame{
			SourceName: cur.Code.Header.SourceName,
			IP:         cur.IP,
			IsEval:     cur.Code.Header.Flags.Has(bytecode.FlagIsEval),
		})
		if maxFrames > 0 && len(frames) >= maxFrames {
			break
		}
	}
	return frames
}
