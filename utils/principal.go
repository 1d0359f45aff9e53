package utils

import (
	"context"
	"net/http"

	"scatch/globals"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func WithPrincipal(ctx context.Context, p globals.Principal) context.Context {
	return context.WithValue(ctx, globals.PrincipalKey, p)
}

func GetPrincipal(r *http.Request) (globals.Principal, bool) {
	p, ok := r.Context().Value(globals.PrincipalKey).(globals.Principal)
	return p, ok && p.ID != ""
}

// GetPrincipalID returns the authenticated id as an ObjectID.
func GetPrincipalID(r *http.Request) (primitive.ObjectID, bool) {
	p, ok := GetPrincipal(r)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func GetUserIDFromRequest(r *http.Request) string {
	p, _ := GetPrincipal(r)
	return p.ID
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(globals.RequestIDKey).(string)
	return id
}
