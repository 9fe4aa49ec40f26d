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
	"testing"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		name string
		user core.DiscordUser
		size int
		want string
	}{
		{
			"no avatar",
			core.DiscordUser{ID: "94490510688792576"},
			0,
			"",
		},
		{
			"no id",
			core.DiscordUser{Avatar: "abc123"},
			0,
			"",
		},
		{
			"static avatar",
			core.DiscordUser{ID: "94490510688792576", Avatar: "abc123"},
			0,
			"https://cdn.discordapp.com/avatars/94490510688792576/abc123.png",
		},
		{
			"animated avatar",
			core.DiscordUser{ID: "94490510688792576", Avatar: "a_def456"},
			0,
			"https://cdn.discordapp.com/avatars/94490510688792576/a_def456.gif",
		},
		{
			"with size",
			core.DiscordUser{ID: "94490510688792576", Avatar: "abc123"},
			128,
			"https://cdn.discordapp.com/avatars/94490510688792576/abc123.png?size=128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvatarURL(tt.user, tt.size); got != tt.want {
				t.Errorf("AvatarURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActivityAssetURL(t *testing.T) {
	tests := []struct {
		name string
		act  core.Activity
		slot AssetSlot
		want string
	}{
		{
			"no assets block",
			core.Activity{ApplicationID: "1234"},
			AssetLarge,
			"",
		},
		{
			"empty slot",
			core.Activity{ApplicationID: "1234", Assets: &core.Assets{LargeImage: "cover"}},
			AssetSmall,
			"",
		},
		{
			"application asset",
			core.Activity{ApplicationID: "1234", Assets: &core.Assets{LargeImage: "cover"}},
			AssetLarge,
			"https://cdn.discordapp.com/app-assets/1234/cover.png",
		},
		{
			"small slot",
			core.Activity{ApplicationID: "1234", Assets: &core.Assets{SmallImage: "badge"}},
			AssetSmall,
			"https://cdn.discordapp.com/app-assets/1234/badge.png",
		},
		{
			"external asset uses media proxy",
			core.Activity{Assets: &core.Assets{LargeImage: "mp:external/xyz/https/example.com/art.png"}},
			AssetLarge,
			"https://media.discordapp.net/external/xyz/https/example.com/art.png",
		},
		{
			"application asset without application id",
			core.Activity{Assets: &core.Assets{LargeImage: "cover"}},
			AssetLarge,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActivityAssetURL(tt.act, tt.slot); got != tt.want {
				t.Errorf("ActivityAssetURL = %q, want %q", got, tt.want)
			}
		})
	}
}
