//go:generate swag init --dir ../.. --generalInfo internal/api/main_annotations.go --output ../../docs/swagger --outputTypes go --parseInternal

// @title           docmerge API
// @version         1.0
// @description     Template questionnaires and document merge. The caller is identified by the X-Remote-User header set by the fronting proxy.
// @BasePath        /
// @securityDefinitions.apikey RemoteUser
// @in              header
// @name            X-Remote-User
// @description     Identity of the caller, set by the authenticating proxy.
package api
