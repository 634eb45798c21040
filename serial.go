// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import "code.hybscloud.com/atomix"

// TaskID keys a Task in its runtime's arena. Ids are drawn from one
// process-wide sequence, so Tasks of different runtimes never collide.
// The zero TaskID is reserved: a Task whose parent is zero is a root or
// a spawned Task, and reports its abort to the error handler.
type TaskID = uint32

var lastTaskID atomix.Uint32

// nextTaskID allocates a TaskID. The first id issued is 1.
func nextTaskID() TaskID {
	return lastTaskID.Add(1)
}
