// Package quota is exercised entirely by pkg/executor, inside
// CommandFSM.Apply and ahead of dispatching the command:
//
//	command ---> StatusGate.CheckWrite() ---> Registry.Check(project, repo) ---> dispatch
//	                  |  ShuttingDown/ReadOnly                |  QuotaExceeded
//	                  v                                        v
//	              reject command                          reject command
//
// ForcePush and the status-transition command itself skip the StatusGate
// check (they are the mechanism that clears REPLICATION_ONLY). Only Push,
// ForcePush and Transform go through the Registry check; repository
// lifecycle, project and metadata commands do not. ForcePush does not skip
// the Registry check: a forced push bypasses the read-only gate only.
package quota
