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

package filter

import (
	"testing"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

func sampleSnapshot() core.PresenceSnapshot {
	return core.PresenceSnapshot{
		User:   core.DiscordUser{ID: "94490510688792576"},
		Status: core.StatusOnline,
		Activities: []core.Activity{
			{Type: core.ActivityTypeGame, Name: "Factorio"},
			{Type: core.ActivityTypeGame, Name: "Secret Project"},
			{Type: core.ActivityTypeCustom, Name: "Custom Status"},
		},
		ListeningToSpotify: true,
		Spotify:            &core.SpotifyActivity{Song: "Midnight City"},
	}
}

func TestApplyHidesActivities(t *testing.T) {
	f := New([]string{"secret project"}, false)
	out := f.Apply(sampleSnapshot())

	if len(out.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(out.Activities))
	}
	for _, a := range out.Activities {
		if a.Name == "Secret Project" {
			t.Error("hidden activity survived the filter")
		}
	}
	if out.Spotify == nil {
		t.Error("music block should be untouched")
	}
}

func TestApplyMatchesCaseInsensitively(t *testing.T) {
	f := New([]string{"FACTORIO"}, false)
	out := f.Apply(sampleSnapshot())

	for _, a := range out.Activities {
		if a.Name == "Factorio" {
			t.Error("hidden activity survived a case-differing match")
		}
	}
}

func TestApplyHidesSpotify(t *testing.T) {
	f := New(nil, true)
	out := f.Apply(sampleSnapshot())

	if out.Spotify != nil || out.ListeningToSpotify {
		t.Error("music block survived hide_spotify")
	}
	if len(out.Activities) != 3 {
		t.Errorf("activities should be untouched, got %d", len(out.Activities))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	f := New([]string{"factorio"}, true)
	in := sampleSnapshot()
	f.Apply(in)

	if len(in.Activities) != 3 {
		t.Errorf("input activities mutated: %d", len(in.Activities))
	}
	if in.Spotify == nil || !in.ListeningToSpotify {
		t.Error("input music block mutated")
	}
}

func TestApplyPassthrough(t *testing.T) {
	in := sampleSnapshot()

	if out := New(nil, false).Apply(in); len(out.Activities) != 3 || out.Spotify == nil {
		t.Errorf("empty filter altered the snapshot: %+v", out)
	}

	var nilFilter *Filter
	if out := nilFilter.Apply(in); len(out.Activities) != 3 {
		t.Errorf("nil filter altered the snapshot: %+v", out)
	}
}
