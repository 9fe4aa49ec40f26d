// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package filter strips configured activities from snapshots before any
// egress, so private sessions never reach a surface, a sink or the store.
package filter

import (
	"strings"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type Filter struct {
	hidden      map[string]bool
	hideSpotify bool
}

// New builds a filter from a list of hidden activity names (matched
// case-insensitively) and a switch hiding the music block entirely.
func New(hiddenActivities []string, hideSpotify bool) *Filter {
	hidden := make(map[string]bool, len(hiddenActivities))
	for _, name := range hiddenActivities {
		hidden[strings.ToLower(name)] = true
	}
	return &Filter{hidden: hidden, hideSpotify: hideSpotify}
}

// Apply returns a copy of snap with hidden activities removed. The input is
// never mutated.
func (f *Filter) Apply(snap core.PresenceSnapshot) core.PresenceSnapshot {
	if f == nil || (len(f.hidden) == 0 && !f.hideSpotify) {
		return snap
	}

	out := snap.Clone()
	if len(f.hidden) > 0 {
		kept := out.Activities[:0]
		for _, a := range out.Activities {
			if f.hidden[strings.ToLower(a.Name)] {
				continue
			}
			kept = append(kept, a)
		}
		out.Activities = kept
	}
	if f.hideSpotify {
		out.Spotify = nil
		out.ListeningToSpotify = false
	}
	return out
}
