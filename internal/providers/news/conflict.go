/*
Copyright (C) 2026 Airwave Co

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package news

import "gorm.io/gorm/clause"

// onConflictDoNothing mirrors the source's `INSERT OR IGNORE`: the
// primary key is the dedup serialization point, so a conflicting
// insert is simply dropped rather than erroring.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
