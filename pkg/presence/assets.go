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
	"strconv"
	"strings"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

const (
	cdnBase        = "https://cdn.discordapp.com"
	mediaProxyBase = "https://media.discordapp.net"

	// externalAssetPrefix marks asset refs hosted outside the application
	// CDN. These must resolve against the media proxy host; the application
	// CDN serves broken images for them.
	externalAssetPrefix = "mp:"

	animatedHashPrefix = "a_"
)

// AssetSlot selects which image of an activity's asset pair to resolve.
type AssetSlot int

const (
	AssetLarge AssetSlot = iota
	AssetSmall
)

// AvatarURL resolves a user's avatar against the CDN. Returns "" when the
// identity carries no avatar reference. size <= 0 omits the size parameter.
func AvatarURL(user core.DiscordUser, size int) string {
	if user.ID == "" || user.Avatar == "" {
		return ""
	}
	ext := "png"
	if strings.HasPrefix(user.Avatar, animatedHashPrefix) {
		ext = "gif"
	}
	url := fmt.Sprintf("%s/avatars/%s/%s.%s", cdnBase, user.ID, user.Avatar, ext)
	if size > 0 {
		url += "?size=" + strconv.Itoa(size)
	}
	return url
}

// ActivityAssetURL resolves one of an activity's image refs. Returns ""
// when the slot is empty, or when an application-hosted ref has no
// application id to build the URL from.
func ActivityAssetURL(act core.Activity, slot AssetSlot) string {
	if act.Assets == nil {
		return ""
	}
	ref := act.Assets.LargeImage
	if slot == AssetSmall {
		ref = act.Assets.SmallImage
	}
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, externalAssetPrefix) {
		return mediaProxyBase + "/" + strings.TrimPrefix(ref, externalAssetPrefix)
	}
	if act.ApplicationID == "" {
		return ""
	}
	return fmt.Sprintf("%s/app-assets/%s/%s.png", cdnBase, act.ApplicationID, ref)
}
