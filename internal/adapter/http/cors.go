package httpadapter

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	corsAllowMethods = "GET,POST,OPTIONS"
	corsAllowHeaders = "Content-Type"
	corsAnyOrigin    = "*"
)

// corsPolicy answers browsers calling the control API. An empty origin list
// allows any origin.
type corsPolicy struct {
	origins []string
}

func newCORSPolicy(origins string) corsPolicy {
	var p corsPolicy
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == corsAnyOrigin {
			return corsPolicy{}
		}
		if o != "" {
			p.origins = append(p.origins, o)
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// from origin, or "" when the origin is not listed.
func (p corsPolicy) allowOrigin(origin string) string {
	if len(p.origins) == 0 {
		return corsAnyOrigin
	}
	for _, o := range p.origins {
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (p corsPolicy) apply(ctx *app.RequestContext) {
	if len(p.origins) > 0 {
		ctx.Response.Header.Add("Vary", "Origin")
	}
	allowed := p.allowOrigin(string(ctx.Request.Header.Peek("Origin")))
	if allowed == "" {
		return
	}
	ctx.Response.Header.Set("Access-Control-Allow-Origin", allowed)
	ctx.Response.Header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.Response.Header.Set("Access-Control-Max-Age", "600")
}

func corsMiddleware(p corsPolicy) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		p.apply(ctx)
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
