// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package object

import (
	"errors"

	"github.com/kraklabs/jjs/heap"
)

// ErrProxyRevoked is returned by any trap dispatch against a revoked
// Proxy (spec.md section 4.4, "Revocation ... makes further operations
// throw").
var ErrProxyRevoked = errors.New("object: proxy has been revoked")

// ProxyData is the Extra payload for a Proxy object: a two-slot extended
// object {target-cp, handler-cp} (spec.md section 3 and 4.4).
type ProxyData struct {
	Target  heap.Index
	Handler heap.Index
}

func (p *ProxyData) Refs() []heap.Index {
	if p.Target.IsNull() && p.Handler.IsNull() {
		return nil
	}
	return []heap.Index{p.Target, p.Handler}
}

// NewProxy allocates a Proxy object wrapping target/handler.
func (s *Store) NewProxy(target, handler heap.Index) (heap.Index, error) {
	obj := NewObject(KindProxy, heap.NullIndex)
	obj.Extra = &ProxyData{Target: target, Handler: handler}
	return s.Arena.Alloc(obj)
}

// Revoke clears both slots, making every subsequent trap dispatch against
// this Proxy fail with ErrProxyRevoked (spec.md section 4.4).
func (s *Store) Revoke(proxyIdx heap.Index) {
	obj := s.Arena.Get(proxyIdx).(*Object)
	obj.SetFlag(ObjRevoked)
	if pd, ok := obj.Extra.(*ProxyData); ok {
		pd.Target = heap.NullIndex
		pd.Handler = heap.NullIndex
	}
}

// TargetAndHandler returns the proxy's current target/handler, or
// ErrProxyRevoked if it has been revoked.
func (s *Store) TargetAndHandler(proxyIdx heap.Index) (target, handler heap.Index, err error) {
	obj := s.Arena.Get(proxyIdx).(*Object)
	if obj.Flags().Has(ObjRevoked) {
		return heap.NullIndex, heap.NullIndex, ErrProxyRevoked
	}
	pd := obj.Extra.(*ProxyData)
	return pd.Target, pd.Handler, nil
}
