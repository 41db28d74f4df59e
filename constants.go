package trustedproxy

const (
	CfConnectingIP = "CF-Connecting-IP"
	XRealIP        = "X-Real-IP"
	XForwardedFor  = "X-Forwarded-For"
	XIsTrusted     = "X-Is-Trusted"
)

// Headers an untrusted peer must not be allowed to smuggle past the guard.
var forwardingHeaders = []string{CfConnectingIP, XRealIP, XForwardedFor}
