package app

import (
	"context"
	"fmt"

	"fueltrade/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type appService struct {
	clients     core.ClientService
	sales       core.SaleService
	invoices    core.InvoiceService
	payments    core.PaymentService
	cashbook    core.CashbookService
	allocations core.AllocationService
	stock       core.StockService
}

// NewAppService constructs an appService over the core services.
func NewAppService(pool *pgxpool.Pool) ApplicationService {
	return &appService{
		clients:     core.NewClientService(pool),
		sales:       core.NewSaleService(pool),
		invoices:    core.NewInvoiceService(pool),
		payments:    core.NewPaymentService(pool),
		cashbook:    core.NewCashbookService(pool),
		allocations: core.NewAllocationService(pool),
		stock:       core.NewStockService(pool),
	}
}

// parseAmount parses a decimal string from the boundary. An unparseable
// value is a validation failure, reported with the field name.
func parseAmount(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, value, core.ErrValidation)
	}
	return d, nil
}

// parseOptionalRate parses a VAT rate; empty means "use the default".
func parseOptionalRate(value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseAmount("vat rate", value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *appService) ComputeSaleFinancials(ctx context.Context, req SaleFinancialsRequest) (*SaleFinancialsResult, error) {
	qty, err := parseAmount("quantity", req.QuantityGallons)
	if err != nil {
		return nil, err
	}
	salePrice, err := parseAmount("sale price", req.SalePrice)
	if err != nil {
		return nil, err
	}
	purchasePrice, err := parseAmount("purchase price", req.PurchasePrice)
	if err != nil {
		return nil, err
	}
	vat := decimal.NewFromInt(5)
	if req.VATRate != "" {
		if vat, err = parseAmount("vat rate", req.VATRate); err != nil {
			return nil, err
		}
	}

	fin, err := core.ComputeSaleFinancials(qty, salePrice, purchasePrice, vat)
	if err != nil {
		return nil, err
	}
	return &SaleFinancialsResult{
		Subtotal:    fin.Subtotal.StringFixed(2),
		VATAmount:   fin.VATAmount.StringFixed(2),
		TotalAmount: fin.TotalAmount.StringFixed(2),
		COGS:        fin.COGS.StringFixed(2),
		GrossProfit: fin.GrossProfit.StringFixed(2),
	}, nil
}

func (s *appService) CreateClient(ctx context.Context, req ClientRequest) (*ClientView, error) {
	client, err := s.clients.CreateClient(ctx, clientInput(req))
	if err != nil {
		return nil, err
	}
	return clientView(client), nil
}

func (s *appService) UpdateClient(ctx context.Context, clientID int, req ClientRequest) (*ClientView, error) {
	client, err := s.clients.UpdateClient(ctx, clientID, clientInput(req))
	if err != nil {
		return nil, err
	}
	return clientView(client), nil
}

func (s *appService) DeleteClient(ctx context.Context, clientID int) error {
	return s.clients.DeleteClient(ctx, clientID)
}

func (s *appService) GetClient(ctx context.Context, clientID int) (*ClientView, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return clientView(client), nil
}

func (s *appService) ListClients(ctx context.Context) ([]ClientView, error) {
	clients, err := s.clients.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ClientView, len(clients))
	for i := range clients {
		views[i] = *clientView(&clients[i])
	}
	return views, nil
}

func (s *appService) CreateProject(ctx context.Context, clientID int, name, location string) (*ProjectView, error) {
	project, err := s.clients.CreateProject(ctx, clientID, name, location)
	if err != nil {
		return nil, err
	}
	return projectView(project), nil
}

func (s *appService) ListProjects(ctx context.Context, clientID int) ([]ProjectView, error) {
	projects, err := s.clients.GetProjects(ctx, clientID)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, len(projects))
	for i := range projects {
		views[i] = *projectView(&projects[i])
	}
	return views, nil
}

func (s *appService) DeleteProject(ctx context.Context, projectID int) error {
	return s.clients.DeleteProject(ctx, projectID)
}

func (s *appService) ListAccountHeads(ctx context.Context) ([]AccountHeadView, error) {
	heads, err := s.clients.GetAccountHeads(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]AccountHeadView, len(heads))
	for i, h := range heads {
		views[i] = AccountHeadView{ID: h.ID, Name: h.Name, Category: string(h.Category), ClientID: h.ClientID}
	}
	return views, nil
}

func (s *appService) saleInput(req SaleRequest) (core.SaleInput, error) {
	qty, err := parseAmount("quantity", req.QuantityGallons)
	if err != nil {
		return core.SaleInput{}, err
	}
	salePrice, err := parseAmount("sale price", req.SalePrice)
	if err != nil {
		return core.SaleInput{}, err
	}
	purchasePrice, err := parseAmount("purchase price", req.PurchasePrice)
	if err != nil {
		return core.SaleInput{}, err
	}
	vat, err := parseOptionalRate(req.VATRate)
	if err != nil {
		return core.SaleInput{}, err
	}
	return core.SaleInput{
		ClientID:        req.ClientID,
		ProjectID:       req.ProjectID,
		LPONumber:       req.LPONumber,
		SaleDate:        req.SaleDate,
		QuantityGallons: qty,
		SalePrice:       salePrice,
		PurchasePrice:   purchasePrice,
		VATRate:         vat,
	}, nil
}

func (s *appService) CreateSale(ctx context.Context, req SaleRequest) (*SaleView, error) {
	input, err := s.saleInput(req)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.CreateSale(ctx, input)
	if err != nil {
		return nil, err
	}
	return saleView(sale), nil
}

func (s *appService) UpdateSale(ctx context.Context, saleID int, req SaleRequest) (*SaleView, error) {
	input, err := s.saleInput(req)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.UpdateSale(ctx, saleID, input)
	if err != nil {
		return nil, err
	}
	return saleView(sale), nil
}

func (s *appService) DeleteSale(ctx context.Context, saleID int) error {
	return s.sales.DeleteSale(ctx, saleID)
}

func (s *appService) UpdateSaleStatus(ctx context.Context, saleID int, status string) (*SaleView, error) {
	sale, err := s.sales.UpdateSaleStatus(ctx, saleID, core.SaleStatus(status))
	if err != nil {
		return nil, err
	}
	return saleView(sale), nil
}

func (s *appService) GetSale(ctx context.Context, saleID int) (*SaleView, error) {
	sale, err := s.sales.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return saleView(sale), nil
}

func (s *appService) ListSales(ctx context.Context, clientID *int) ([]SaleView, error) {
	sales, err := s.sales.GetSales(ctx, clientID)
	if err != nil {
		return nil, err
	}
	views := make([]SaleView, len(sales))
	for i := range sales {
		views[i] = *saleView(&sales[i])
	}
	return views, nil
}

func (s *appService) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceView, error) {
	inv, err := s.invoices.CreateInvoice(ctx, core.InvoiceInput{
		SaleID:        req.SaleID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate,
	})
	if err != nil {
		return nil, err
	}
	return invoiceView(inv), nil
}

func (s *appService) CreateInvoiceForLPO(ctx context.Context, lpoNumber, invoiceNumber, invoiceDate string) ([]InvoiceView, error) {
	batch, err := s.invoices.CreateInvoiceForLPO(ctx, lpoNumber, invoiceNumber, invoiceDate)
	if err != nil {
		return nil, err
	}
	views := make([]InvoiceView, len(batch))
	for i := range batch {
		views[i] = *invoiceView(&batch[i])
	}
	return views, nil
}

func (s *appService) DeleteInvoice(ctx context.Context, invoiceID int) error {
	return s.invoices.DeleteInvoice(ctx, invoiceID)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*InvoiceView, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return invoiceView(inv), nil
}

func (s *appService) ListInvoices(ctx context.Context) ([]InvoiceView, error) {
	invoices, err := s.invoices.GetInvoices(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]InvoiceView, len(invoices))
	for i := range invoices {
		views[i] = *invoiceView(&invoices[i])
	}
	return views, nil
}

func (s *appService) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentView, error) {
	amount, err := parseAmount("payment amount", req.AmountReceived)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         req.SaleID,
		AmountReceived: amount,
		PaymentDate:    req.PaymentDate,
		PaymentMethod:  req.PaymentMethod,
		ChequeNumber:   req.ChequeNumber,
	})
	if err != nil {
		return nil, err
	}
	return paymentView(payment), nil
}

func (s *appService) DeletePayment(ctx context.Context, paymentID int) error {
	return s.payments.DeletePayment(ctx, paymentID)
}

func (s *appService) GetPayment(ctx context.Context, paymentID int) (*PaymentView, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return paymentView(payment), nil
}

func (s *appService) ListPaymentsForSale(ctx context.Context, saleID int) ([]PaymentView, error) {
	payments, err := s.payments.GetPaymentsBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, len(payments))
	for i := range payments {
		views[i] = *paymentView(&payments[i])
	}
	return views, nil
}

func (s *appService) entryInput(req CashbookEntryRequest) (core.CashbookEntryInput, error) {
	amount, err := parseAmount("entry amount", req.Amount)
	if err != nil {
		return core.CashbookEntryInput{}, err
	}
	return core.CashbookEntryInput{
		TransactionDate: req.TransactionDate,
		TransactionType: req.TransactionType,
		AccountHeadID:   req.AccountHeadID,
		Amount:          amount,
		IsInflow:        req.IsInflow,
		IsPending:       req.IsPending,
		Counterparty:    req.Counterparty,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}, nil
}

func (s *appService) CreateCashbookEntry(ctx context.Context, req CashbookEntryRequest) (*CashbookEntryView, error) {
	input, err := s.entryInput(req)
	if err != nil {
		return nil, err
	}
	entry, err := s.cashbook.CreateEntry(ctx, input)
	if err != nil {
		return nil, err
	}
	return entryView(entry), nil
}

func (s *appService) UpdateCashbookEntry(ctx context.Context, entryID int, req CashbookEntryRequest) (*CashbookEntryView, error) {
	input, err := s.entryInput(req)
	if err != nil {
		return nil, err
	}
	entry, err := s.cashbook.UpdateEntry(ctx, entryID, input)
	if err != nil {
		return nil, err
	}
	return entryView(entry), nil
}

func (s *appService) DeleteCashbookEntry(ctx context.Context, entryID int) error {
	return s.cashbook.DeleteEntry(ctx, entryID)
}

func (s *appService) GetCashbookEntry(ctx context.Context, entryID int) (*CashbookEntryView, error) {
	entry, err := s.cashbook.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return entryView(entry), nil
}

func (s *appService) ListCashbookEntries(ctx context.Context) ([]CashbookEntryView, error) {
	entries, err := s.cashbook.GetEntries(ctx)
	if err != nil {
		return nil, err
	}
	return entryViews(entries), nil
}

func (s *appService) GetCashBalance(ctx context.Context) (string, error) {
	balance, err := s.cashbook.GetCashBalance(ctx)
	if err != nil {
		return "", err
	}
	return balance.StringFixed(2), nil
}

func (s *appService) GetTransactionSummary(ctx context.Context) (*TransactionSummaryView, error) {
	sum, err := s.cashbook.GetTransactionSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &TransactionSummaryView{
		TotalInflow:      sum.TotalInflow.StringFixed(2),
		TotalOutflow:     sum.TotalOutflow.StringFixed(2),
		PendingDebts:     sum.PendingDebts.StringFixed(2),
		AvailableBalance: sum.AvailableBalance.StringFixed(2),
	}, nil
}

func (s *appService) GetPendingDebts(ctx context.Context) ([]CashbookEntryView, error) {
	debts, err := s.cashbook.GetPendingDebts(ctx)
	if err != nil {
		return nil, err
	}
	return entryViews(debts), nil
}

func (s *appService) GetOutstandingByAccountHead(ctx context.Context) ([]OutstandingView, error) {
	lines, err := s.cashbook.GetOutstandingByAccountHead(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]OutstandingView, len(lines))
	for i, line := range lines {
		views[i] = OutstandingView{
			AccountHeadID: line.AccountHeadID,
			HeadName:      line.HeadName,
			Category:      string(line.Category),
			Outstanding:   line.Outstanding.StringFixed(2),
		}
	}
	return views, nil
}

func (s *appService) MarkDebtAsPaid(ctx context.Context, req SettleDebtRequest) (*CashbookEntryView, error) {
	amount, err := parseAmount("paid amount", req.PaidAmount)
	if err != nil {
		return nil, err
	}
	entry, err := s.cashbook.MarkDebtAsPaid(ctx, req.DebtEntryID, amount, req.PaymentMethod, req.PaymentDate)
	if err != nil {
		return nil, err
	}
	return entryView(entry), nil
}

func (s *appService) CreateAllocation(ctx context.Context, req AllocationRequest) (*AllocationView, error) {
	amount, err := parseAmount("allocation amount", req.AmountAllocated)
	if err != nil {
		return nil, err
	}
	alloc, err := s.allocations.CreateAllocation(ctx, req.CashbookEntryID, req.InvoiceID, amount)
	if err != nil {
		return nil, err
	}
	return allocationView(alloc), nil
}

func (s *appService) ListAllocationsByEntry(ctx context.Context, entryID int) ([]AllocationView, error) {
	allocs, err := s.allocations.GetAllocationsByEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return allocationViews(allocs), nil
}

func (s *appService) ListAllocationsByInvoice(ctx context.Context, invoiceID int) ([]AllocationView, error) {
	allocs, err := s.allocations.GetAllocationsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return allocationViews(allocs), nil
}

func (s *appService) ListPendingInvoicesForAllocation(ctx context.Context, accountHeadID *int) ([]PendingInvoiceView, error) {
	pending, err := s.allocations.GetPendingInvoicesForAllocation(ctx, accountHeadID)
	if err != nil {
		return nil, err
	}
	views := make([]PendingInvoiceView, len(pending))
	for i := range pending {
		views[i] = PendingInvoiceView{
			InvoiceView: *invoiceView(&pending[i].Invoice),
			Allocated:   pending[i].Allocated.StringFixed(2),
			Pending:     pending[i].Pending.StringFixed(2),
		}
	}
	return views, nil
}

func (s *appService) CreateStockPurchase(ctx context.Context, req StockPurchaseRequest) (*StockPurchaseView, error) {
	qty, err := parseAmount("quantity", req.QuantityGallons)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("price per gallon", req.PricePerGallon)
	if err != nil {
		return nil, err
	}
	purchase, err := s.stock.CreateStockPurchase(ctx, core.StockPurchaseInput{
		SupplierName:    req.SupplierName,
		PurchaseDate:    req.PurchaseDate,
		QuantityGallons: qty,
		PricePerGallon:  price,
		PaymentStatus:   req.PaymentStatus,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return stockPurchaseView(purchase), nil
}

func (s *appService) DeleteStockPurchase(ctx context.Context, purchaseID int) error {
	return s.stock.DeleteStockPurchase(ctx, purchaseID)
}

func (s *appService) ListStockPurchases(ctx context.Context) ([]StockPurchaseView, error) {
	purchases, err := s.stock.GetStockPurchases(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]StockPurchaseView, len(purchases))
	for i := range purchases {
		views[i] = *stockPurchaseView(&purchases[i])
	}
	return views, nil
}

// ── view converters ──────────────────────────────────────────────────────────

func clientInput(req ClientRequest) core.ClientInput {
	return core.ClientInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	}
}

func clientView(c *core.Client) *ClientView {
	return &ClientView{
		ID:            c.ID,
		Name:          c.Name,
		ContactPerson: c.ContactPerson,
		Email:         c.Email,
		Phone:         c.Phone,
		Address:       c.Address,
		CreatedAt:     c.CreatedAt,
	}
}

func projectView(p *core.Project) *ProjectView {
	return &ProjectView{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Location: p.Location}
}

func saleView(sale *core.Sale) *SaleView {
	return &SaleView{
		ID:              sale.ID,
		ClientID:        sale.ClientID,
		ClientName:      sale.ClientName,
		ProjectID:       sale.ProjectID,
		LPONumber:       sale.LPONumber,
		SaleDate:        sale.SaleDate,
		QuantityGallons: sale.QuantityGallons.String(),
		SalePrice:       sale.SalePrice.StringFixed(2),
		PurchasePrice:   sale.PurchasePrice.StringFixed(2),
		VATRate:         sale.VATRate.StringFixed(2),
		Subtotal:        sale.Subtotal.StringFixed(2),
		VATAmount:       sale.VATAmount.StringFixed(2),
		TotalAmount:     sale.TotalAmount.StringFixed(2),
		COGS:            sale.COGS.StringFixed(2),
		GrossProfit:     sale.GrossProfit.StringFixed(2),
		SaleStatus:      string(sale.SaleStatus),
		InvoiceDate:     sale.InvoiceDate,
		CreatedAt:       sale.CreatedAt,
	}
}

func invoiceView(inv *core.Invoice) *InvoiceView {
	return &InvoiceView{
		ID:            inv.ID,
		SaleID:        inv.SaleID,
		InvoiceNumber: inv.InvoiceNumber,
		LPONumber:     inv.LPONumber,
		InvoiceDate:   inv.InvoiceDate,
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		VATAmount:     inv.VATAmount.StringFixed(2),
		Status:        string(inv.Status),
		CreatedAt:     inv.CreatedAt,
	}
}

func paymentView(p *core.Payment) *PaymentView {
	return &PaymentView{
		ID:             p.ID,
		SaleID:         p.SaleID,
		AmountReceived: p.AmountReceived.StringFixed(2),
		PaymentDate:    p.PaymentDate,
		PaymentMethod:  p.PaymentMethod,
		ChequeNumber:   p.ChequeNumber,
		CreatedAt:      p.CreatedAt,
	}
}

func entryView(e *core.CashbookEntry) *CashbookEntryView {
	return &CashbookEntryView{
		ID:              e.ID,
		TransactionDate: e.TransactionDate,
		TransactionType: e.TransactionType,
		AccountHeadID:   e.AccountHeadID,
		Amount:          e.Amount.StringFixed(2),
		IsInflow:        e.IsInflow,
		IsPending:       e.IsPending,
		ReferenceType:   e.ReferenceType,
		ReferenceID:     e.ReferenceID,
		Counterparty:    e.Counterparty,
		PaymentMethod:   e.PaymentMethod,
		Notes:           e.Notes,
		CreatedAt:       e.CreatedAt,
	}
}

func entryViews(entries []core.CashbookEntry) []CashbookEntryView {
	views := make([]CashbookEntryView, len(entries))
	for i := range entries {
		views[i] = *entryView(&entries[i])
	}
	return views
}

func allocationView(a *core.Allocation) *AllocationView {
	return &AllocationView{
		ID:              a.ID,
		CashbookEntryID: a.CashbookEntryID,
		InvoiceID:       a.InvoiceID,
		AmountAllocated: a.AmountAllocated.StringFixed(2),
		CreatedAt:       a.CreatedAt,
	}
}

func allocationViews(allocs []core.Allocation) []AllocationView {
	views := make([]AllocationView, len(allocs))
	for i := range allocs {
		views[i] = *allocationView(&allocs[i])
	}
	return views
}

func stockPurchaseView(p *core.StockPurchase) *StockPurchaseView {
	return &StockPurchaseView{
		ID:              p.ID,
		SupplierName:    p.SupplierName,
		AccountHeadID:   p.AccountHeadID,
		PurchaseDate:    p.PurchaseDate,
		QuantityGallons: p.QuantityGallons.String(),
		PricePerGallon:  p.PricePerGallon.StringFixed(2),
		TotalCost:       p.TotalCost.StringFixed(2),
		PaymentStatus:   p.PaymentStatus,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
	}
}
