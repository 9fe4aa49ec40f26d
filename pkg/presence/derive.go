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

package presence

import (
	"fmt"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// CustomStatusSentinel is the activity name the gateway uses for the
// placeholder game entry that represents "no real activity".
const CustomStatusSentinel = "Custom Status"

// CurrentGameActivity returns the first game activity whose name is not the
// custom-status sentinel. First match in server order, so the result is
// stable for a given snapshot.
func CurrentGameActivity(snap core.PresenceSnapshot) (core.Activity, bool) {
	for _, a := range snap.Activities {
		if a.Type == core.ActivityTypeGame && a.Name != CustomStatusSentinel {
			return a, true
		}
	}
	return core.Activity{}, false
}

// CustomStatus returns the first custom-status activity, if any.
func CustomStatus(snap core.PresenceSnapshot) (core.Activity, bool) {
	for _, a := range snap.Activities {
		if a.Type == core.ActivityTypeCustom {
			return a, true
		}
	}
	return core.Activity{}, false
}

// IsMusicActive reports whether the snapshot's music block describes a track
// that is still playing at nowMs. Gateway pushes are event-driven, so a
// finished track lingers in the snapshot until the next push; the end
// timestamp is the authority.
func IsMusicActive(snap core.PresenceSnapshot, nowMs int64) bool {
	return snap.Spotify != nil && snap.Spotify.Timestamps.End > nowMs
}

// Elapsed returns nowMs-startMs clamped at zero, tolerating clocks skewed
// behind a freshly received snapshot.
func Elapsed(startMs, nowMs int64) int64 {
	if nowMs < startMs {
		return 0
	}
	return nowMs - startMs
}

// ProgressPercent returns playback progress in [0,100]. A zero-length or
// inverted range yields 0 rather than a division error; the gateway does
// not guarantee end > start.
func ProgressPercent(startMs, endMs, nowMs int64) float64 {
	if endMs <= startMs {
		return 0
	}
	pct := float64(nowMs-startMs) / float64(endMs-startMs) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatDurationShort renders "M:SS" with unbounded minutes, used for track
// position and length.
func FormatDurationShort(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSec := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSec/60, totalSec%60)
}

// FormatElapsedLong renders "Hh Mm" at an hour or more, otherwise "Mm",
// used for "playing for ..." displays.
func FormatElapsedLong(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalMin := ms / 60000
	if totalMin >= 60 {
		return fmt.Sprintf("%dh %dm", totalMin/60, totalMin%60)
	}
	return fmt.Sprintf("%dm", totalMin)
}

// PrimaryKind names what occupies the primary display slot.
type PrimaryKind int

const (
	PrimaryNone PrimaryKind = iota
	PrimaryMusic
	PrimaryGame
)

// Primary is the single shared tie-break rule for the primary display slot:
// active music wins over a running game. Display surfaces must not re-decide
// this individually.
func Primary(snap core.PresenceSnapshot, nowMs int64) PrimaryKind {
	if IsMusicActive(snap, nowMs) {
		return PrimaryMusic
	}
	if _, ok := CurrentGameActivity(snap); ok {
		return PrimaryGame
	}
	return PrimaryNone
}
