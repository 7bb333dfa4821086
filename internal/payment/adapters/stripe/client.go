package stripe

import (
	"context"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// API is the slice of the Stripe API the adapter drives.
type API interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripego.Customer, error)
	CreateCustomer(ctx context.Context, email string) (*stripego.Customer, error)
	CreateInvoice(ctx context.Context, params *stripego.InvoiceParams) (*stripego.Invoice, error)
	CreateInvoiceItem(ctx context.Context, params *stripego.InvoiceItemParams) (*stripego.InvoiceItem, error)
	GetInvoice(ctx context.Context, id string) (*stripego.Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*stripego.Invoice, error)
	SendInvoice(ctx context.Context, id string) (*stripego.Invoice, error)
}

// sdkClient owns one client.API so adapters never touch stripe.Key.
type sdkClient struct {
	sc *client.API
}

func newSDKClient(apiKey, apiBase string) API {
	var backends *stripego.Backends
	if apiBase != "" {
		backends = &stripego.Backends{
			API: stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
				URL: stripego.String(apiBase),
			}),
		}
	}
	return &sdkClient{sc: client.New(apiKey, backends)}
}

func (c *sdkClient) FindCustomerByEmail(ctx context.Context, email string) (*stripego.Customer, error) {
	params := &stripego.CustomerListParams{Email: stripego.String(email)}
	params.Context = ctx
	params.Limit = stripego.Int64(1)

	iter := c.sc.Customers.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

func (c *sdkClient) CreateCustomer(ctx context.Context, email string) (*stripego.Customer, error) {
	params := &stripego.CustomerParams{Email: stripego.String(email)}
	params.Context = ctx
	return c.sc.Customers.New(params)
}

func (c *sdkClient) CreateInvoice(ctx context.Context, params *stripego.InvoiceParams) (*stripego.Invoice, error) {
	params.Context = ctx
	return c.sc.Invoices.New(params)
}

func (c *sdkClient) CreateInvoiceItem(ctx context.Context, params *stripego.InvoiceItemParams) (*stripego.InvoiceItem, error) {
	params.Context = ctx
	return c.sc.InvoiceItems.New(params)
}

func (c *sdkClient) GetInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	params := &stripego.InvoiceParams{}
	params.Context = ctx
	return c.sc.Invoices.Get(id, params)
}

func (c *sdkClient) FinalizeInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	params := &stripego.InvoiceFinalizeInvoiceParams{}
	params.Context = ctx
	return c.sc.Invoices.FinalizeInvoice(id, params)
}

func (c *sdkClient) SendInvoice(ctx context.Context, id string) (*stripego.Invoice, error) {
	params := &stripego.InvoiceSendInvoiceParams{}
	params.Context = ctx
	return c.sc.Invoices.SendInvoice(id, params)
}
