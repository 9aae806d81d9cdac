package sdk

import (
	"context"
	"net/http"

	"github.com/hmgle/harcapture/pkg/masking"
)

type controllerKey struct{}

// Controller lets a handler adjust how its exchange is recorded. Each request
// gets its own controller; it is not safe for concurrent use.
type Controller struct {
	pathHint   string
	customerID string
	masks      *masking.Masking
}

func newController(defaults *masking.Masking) *Controller {
	return &Controller{masks: defaults.Clone()}
}

// SetPathHint overrides the path hint derived from the matched route
func (c *Controller) SetPathHint(pathHint string) {
	c.pathHint = pathHint
}

func (c *Controller) PathHint() string {
	return c.pathHint
}

// SetCustomerID attributes the exchange to a customer
func (c *Controller) SetCustomerID(customerID string) {
	c.customerID = customerID
}

func (c *Controller) CustomerID() string {
	return c.customerID
}

// Mask adds masking directives for this exchange
func (c *Controller) Mask(directives ...masking.Directive) {
	c.masks.Apply(directives...)
}

// Masking returns a snapshot of the masks configured so far
func (c *Controller) Masking() *masking.Masking {
	return c.masks.Clone()
}

// ControllerFromContext returns the controller of the exchange, or nil when
// the context does not come from the middleware
func ControllerFromContext(ctx context.Context) *Controller {
	c, _ := ctx.Value(controllerKey{}).(*Controller)
	return c
}

// ControllerFromRequest is ControllerFromContext(r.Context())
func ControllerFromRequest(r *http.Request) *Controller {
	return ControllerFromContext(r.Context())
}
