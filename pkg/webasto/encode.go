// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// cborMode encodes maps with sorted keys so dumps are byte-for-byte stable
var cborMode, _ = cbor.CoreDetEncOptions().EncMode()

// MarshalCBOR encodes the snapshot as a CBOR map (core deterministic encoding)
func (s Snapshot) MarshalCBOR() ([]byte, error) {
	return cborMode.Marshal(s.Map())
}

// MarshalYAML encodes the snapshot as a YAML mapping, keeping field order
func (s Snapshot) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range s.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(s.values[k].Interface()); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}
