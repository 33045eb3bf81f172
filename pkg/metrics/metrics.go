// Copyright 2023 ColStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GCDeletedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltastore_gc_deleted_files_total",
		Help: "Total number of files removed by the retention manager",
	})

	GCFailedDeletes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltastore_gc_failed_deletes_total",
		Help: "Total number of file deletions skipped after an error",
	})

	TrashArchivedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltastore_trash_archived_files_total",
		Help: "Total number of files copied into the trash folder",
	})

	TrashExpiredBuckets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltastore_trash_expired_buckets_total",
		Help: "Total number of expired timestamp buckets removed from the trash folder",
	})
)

func init() {
	prometheus.MustRegister(GCDeletedFiles, GCFailedDeletes, TrashArchivedFiles, TrashExpiredBuckets)
}
