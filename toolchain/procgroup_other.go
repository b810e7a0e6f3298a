//go:build !unix

/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package toolchain

import "os/exec"

// setProcessGroup is a no-op: only the program itself is killed on cancellation, and
// Command.Run relies on exec.Cmd.WaitDelay to not wait on the output of its children.
func setProcessGroup(cmd *exec.Cmd) {}
