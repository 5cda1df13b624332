// Package dashboard serves the gateway's read-only HTTP API.
//
// # Endpoints
//
//	GET /stats         status, active chat backends, request count, uptime
//	GET /leaderboard   win counts per backend, highest first
//	GET /logs          the most recent requests, newest first
//	GET /summary       all of the above in one response
//	GET /health        liveness
//	GET /health/ready  storage reachable and at least one chat backend
//
// CORS is open to any origin so a browser dashboard on another port can
// poll these endpoints. There is no write path.
//
// # Degradation
//
// /stats reads only in-memory state. When a storage read fails, the other
// endpoints log a warning and answer 200 with empty arrays, so a broken
// database never takes the dashboard down.
package dashboard
