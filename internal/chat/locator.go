// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chat

import "strings"

// ParseStorageLocator splits a "gs://bucket/path/to/object" style locator
// into bucket and object. ok is false for anything that does not have a
// scheme, a bucket and a non-empty object path.
func ParseStorageLocator(uri string) (bucket, object string, ok bool) {
	parts := strings.SplitN(uri, "/", 4)
	if len(parts) < 4 {
		return "", "", false
	}

	scheme := parts[0]
	if len(scheme) < 2 || !strings.HasSuffix(scheme, ":") || parts[1] != "" {
		return "", "", false
	}

	bucket, object = parts[2], parts[3]
	if bucket == "" || object == "" {
		return "", "", false
	}

	return bucket, object, true
}
