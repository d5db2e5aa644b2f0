package http

import (
	"context"
	"net/http"

	"integralq/pkg/contracts/domain"
)

func withDomain(ctx context.Context, d domain.Domain) context.Context {
	return context.WithValue(ctx, domainKey{}, d)
}

func domainFrom(r *http.Request) domain.Domain {
	d, _ := r.Context().Value(domainKey{}).(domain.Domain)
	return d
}
