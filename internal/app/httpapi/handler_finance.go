package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/services/finance"
	"github.com/domu-platform/domu/internal/app/services/units"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// maxUploadBytes bounds multipart uploads (library documents, receipts).
const maxUploadBytes = 32 << 20

func (h *handler) unitRoutes(r *mux.Router) {
	r.HandleFunc("/admin/housing-units", h.listUnits).Methods(http.MethodGet)
	r.HandleFunc("/admin/housing-units", h.saveUnit).Methods(http.MethodPost)
	r.HandleFunc("/admin/housing-units/{id:[0-9]+}", h.getUnit).Methods(http.MethodGet)
	r.HandleFunc("/admin/housing-units/{id:[0-9]+}", h.saveUnit).Methods(http.MethodPut)
	r.HandleFunc("/admin/housing-units/{id:[0-9]+}", h.deleteUnit).Methods(http.MethodDelete)
	r.HandleFunc("/admin/housing-units/{id:[0-9]+}/residents", h.linkResident).Methods(http.MethodPost)
	r.HandleFunc("/admin/housing-units/{id:[0-9]+}/residents/{userId:[0-9]+}", h.unlinkResident).Methods(http.MethodDelete)
}

func (h *handler) listUnits(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Units.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getUnit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.app.Units.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// saveUnit creates on POST and updates on PUT.
func (h *handler) saveUnit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Number       string          `json:"number"`
		Tower        string          `json:"tower"`
		Floor        string          `json:"floor"`
		Aliquot      decimal.Decimal `json:"aliquot"`
		SquareMeters decimal.Decimal `json:"squareMeters"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := units.Input{
		Number:       payload.Number,
		Tower:        payload.Tower,
		Floor:        payload.Floor,
		Aliquot:      payload.Aliquot,
		SquareMeters: payload.SquareMeters,
	}
	if r.Method == http.MethodPost {
		created, err := h.app.Units.Create(r.Context(), actor, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.app.Units.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteUnit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Units.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) linkResident(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		UserID int64 `json:"userId" validate:"required,gt=0"`
	}
	if !decode(w, r, &payload) {
		return
	}
	linked, err := h.app.Units.LinkResident(r.Context(), actor, id, payload.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linked)
}

func (h *handler) unlinkResident(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := h.app.Units.UnlinkResident(r.Context(), actor, id, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) financeRoutes(r *mux.Router) {
	r.HandleFunc("/admin/common-expenses/periods", h.createPeriod).Methods(http.MethodPost)
	r.HandleFunc("/admin/common-expenses/periods", h.listPeriods).Methods(http.MethodGet)
	r.HandleFunc("/admin/common-expenses/periods/{id:[0-9]+}/charges", h.addCharges).Methods(http.MethodPost)
	r.HandleFunc("/admin/common-expenses/charges/{id:[0-9]+}/receipt", h.uploadChargeReceipt).Methods(http.MethodPost)
	r.HandleFunc("/common-expenses/my-periods", h.myPeriods).Methods(http.MethodGet)
	r.HandleFunc("/common-expenses/my-charges", h.myCharges).Methods(http.MethodGet)
	r.HandleFunc("/common-expenses/periods/{id:[0-9]+}", h.periodDetail).Methods(http.MethodGet)
	r.HandleFunc("/common-expenses/periods/{id:[0-9]+}/pdf", h.periodPDF).Methods(http.MethodGet)
	r.HandleFunc("/common-expenses/charges/{id:[0-9]+}/pay", h.payCharge).Methods(http.MethodPost)
	r.HandleFunc("/common-expenses/charges/{id:[0-9]+}/receipt", h.downloadChargeReceipt).Methods(http.MethodGet)
	r.HandleFunc("/common-expenses/payments/{id:[0-9]+}/receipt.pdf", h.paymentReceipt).Methods(http.MethodGet)
}

type chargePayload struct {
	UnitID      *int64          `json:"unitId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Origin      string          `json:"origin"`
	Prorateable bool            `json:"prorateable"`
	ReceiptText string          `json:"receiptText"`
}

func toChargeInputs(payload []chargePayload) []finance.ChargeInput {
	out := make([]finance.ChargeInput, 0, len(payload))
	for _, c := range payload {
		out = append(out, finance.ChargeInput{
			UnitID:      c.UnitID,
			Description: c.Description,
			Amount:      c.Amount,
			Type:        c.Type,
			Origin:      c.Origin,
			Prorateable: c.Prorateable,
			ReceiptText: c.ReceiptText,
		})
	}
	return out
}

func (h *handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Year          int             `json:"year"`
		Month         int             `json:"month"`
		DueDate       string          `json:"dueDate" validate:"required"`
		ReserveAmount decimal.Decimal `json:"reserveAmount"`
		Charges       []chargePayload `json:"charges"`
		Note          string          `json:"note"`
	}
	if !decode(w, r, &payload) {
		return
	}
	due, err := parseDay(&payload.DueDate, "dueDate")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.app.Finance.CreatePeriod(r.Context(), actor, finance.PeriodInput{
		Year:          payload.Year,
		Month:         payload.Month,
		DueDate:       *due,
		ReserveAmount: payload.ReserveAmount,
		Charges:       toChargeInputs(payload.Charges),
		Note:          payload.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) addCharges(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Charges []chargePayload `json:"charges" validate:"required,min=1"`
		Note    string          `json:"note"`
	}
	if !decode(w, r, &payload) {
		return
	}
	result, err := h.app.Finance.AddCharges(r.Context(), actor, id, toChargeInputs(payload.Charges), payload.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func monthRange(r *http.Request) (*int, *int, error) {
	from, err := queryMonth(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := queryMonth(r, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (h *handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	from, to, err := monthRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Finance.ListPeriods(r.Context(), actor, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) myPeriods(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	from, to, err := monthRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Finance.MyPeriods(r.Context(), actor, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) myCharges(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Finance.MyCharges(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) periodDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.app.Finance.PeriodDetail(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) periodPDF(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	body, err := h.app.Finance.PeriodPDF(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePDF(w, fmt.Sprintf("gastos-comunes-%d.pdf", id), body)
}

func (h *handler) payCharge(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"paymentMethod"`
		Reference     string          `json:"reference"`
		ReceiptText   string          `json:"receiptText"`
	}
	if !decode(w, r, &payload) {
		return
	}
	result, err := h.app.Finance.PayCharge(r.Context(), actor, id, finance.PaymentInput{
		Amount:        payload.Amount,
		PaymentMethod: payload.PaymentMethod,
		Reference:     payload.Reference,
		ReceiptText:   payload.ReceiptText,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) paymentReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	body, err := h.app.Finance.PaymentReceipt(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePDF(w, fmt.Sprintf("comprobante-%d.pdf", id), body)
}

func (h *handler) uploadChargeReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	file, err := formFile(w, r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer file.Close()
	charge, err := h.app.Finance.UploadChargeReceipt(r.Context(), actor, id, file.name, file.contentType, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, charge)
}

func (h *handler) downloadChargeReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipt, err := h.app.Finance.DownloadChargeReceipt(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer receipt.Body.Close()
	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": receipt.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, receipt.Body); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("stream receipt")
	}
}

func writePDF(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// uploadedFile is one multipart file part.
type uploadedFile struct {
	io.ReadCloser
	name        string
	contentType string
	size        int64
}

func formFile(w http.ResponseWriter, r *http.Request, field string) (*uploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, apperrors.Validation("invalid multipart form: %s", err.Error())
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, apperrors.Validation("%s is required", field)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(fileExt(header.Filename)))
	}
	return &uploadedFile{ReadCloser: f, name: header.Filename, contentType: contentType, size: header.Size}, nil
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
