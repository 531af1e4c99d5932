// Package acl filters report contents by access control.
//
// The reporting engine asks a Checker whether the subscriber behind a read
// handler may View each concrete attribute before encoding it. A path the
// subscriber cannot View is left out of wildcard expansions and reported
// with an UnsupportedAccess status when it was requested concretely.
//
// Key concepts:
//   - Privilege: View < Operate < Manage < Administer (hierarchy)
//   - AuthMode: PASE (commissioning), CASE (operational), Group
//   - Subject: NodeID or group NodeID
//   - Target: Cluster and/or Endpoint
//
// The algorithm:
//  1. PASE sessions during commissioning get implicit Administer privilege
//  2. For each entry matching fabric and auth mode:
//     - the entry privilege must grant the required privilege
//     - a subject must match (empty means any)
//     - a target must match (empty means any)
//  3. First matching entry grants access; no match means denied
package acl
