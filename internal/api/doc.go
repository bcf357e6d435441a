// Package api exposes the organization lifecycle over HTTP.
//
// Routes:
//
//	POST   /org/create          create an organization and its admin
//	GET    /org/get/{name}      read an organization
//	PUT    /org/update/{name}   change the admin email and/or password
//	DELETE /org/delete/{name}   delete an organization (owner bearer token)
//	POST   /admin/login         exchange credentials for a bearer token
//	GET    /health              liveness
//	GET    /health/ready        readiness (control store reachable)
//	GET    /                    endpoint listing
//
// Responses use the envelope {"success": bool, "message": string, "data": {...}};
// login puts token and admin beside success and message instead of under data.
package api
