package finance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/user"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/platform/filestore"
)

// Receipt is a downloadable charge receipt.
type Receipt struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
}

// UploadChargeReceipt stores a receipt file for a charge of the selected
// building and records the upload on the period.
func (s *Service) UploadChargeReceipt(ctx context.Context, actor user.Actor, chargeID int64, fileName, contentType string, r io.Reader) (finance.Charge, error) {
	if err := requireAdmin(actor); err != nil {
		return finance.Charge{}, err
	}
	if s.files == nil {
		return finance.Charge{}, apperrors.Internal("file storage is not configured", nil)
	}
	fileName = strings.TrimSpace(path.Base(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return finance.Charge{}, apperrors.Validation("file name is required")
	}
	charge, err := s.store.GetCharge(ctx, chargeID)
	if err != nil {
		return finance.Charge{}, apperrors.FromStore(err, "charge not found")
	}
	period, err := s.store.GetPeriod(ctx, charge.PeriodID)
	if err != nil {
		return finance.Charge{}, apperrors.FromStore(err, "period not found")
	}
	if period.BuildingID != actor.BuildingID {
		return finance.Charge{}, apperrors.Validation("charge does not belong to the selected building")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	prefix := fmt.Sprintf("receipts/%d/%04d-%02d/%d", period.BuildingID, period.Year, period.Month, charge.ID)
	key := filestore.ObjectKey(prefix, fileName)
	if err := s.files.Put(ctx, key, contentType, r); err != nil {
		return finance.Charge{}, apperrors.Internal("could not store receipt", err)
	}

	charge.ReceiptKey = key
	charge.ReceiptFileName = fileName
	charge.ReceiptMimeType = contentType
	charge, err = s.store.UpdateCharge(ctx, charge)
	if err != nil {
		return finance.Charge{}, err
	}
	s.revise(ctx, period.ID, actor.ID(), finance.RevisionReceiptUploaded, "Boleta adjunta", fmt.Sprintf("chargeId=%d", charge.ID))

	s.log.WithField("charge_id", charge.ID).
		WithField("key", key).
		Info("charge receipt uploaded")
	return charge, nil
}

// DownloadChargeReceipt opens a charge receipt for administrators of the
// charge's building or users of the charge's unit.
func (s *Service) DownloadChargeReceipt(ctx context.Context, actor user.Actor, chargeID int64) (Receipt, error) {
	if s.files == nil {
		return Receipt{}, apperrors.Internal("file storage is not configured", nil)
	}
	charge, err := s.store.GetCharge(ctx, chargeID)
	if err != nil {
		return Receipt{}, apperrors.FromStore(err, "charge not found")
	}
	period, err := s.store.GetPeriod(ctx, charge.PeriodID)
	if err != nil {
		return Receipt{}, apperrors.FromStore(err, "period not found")
	}
	if actor.User.IsAdmin() {
		if actor.HasBuilding() && actor.BuildingID != period.BuildingID {
			return Receipt{}, apperrors.Forbidden("you cannot access receipts of another building")
		}
	} else if actor.User.UnitID == nil || *actor.User.UnitID != charge.UnitID {
		return Receipt{}, apperrors.Forbidden("you cannot access receipts of another unit")
	}
	if !charge.HasReceipt() {
		return Receipt{}, apperrors.NotFound("no receipt uploaded for this charge")
	}
	body, err := s.files.Open(ctx, charge.ReceiptKey)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return Receipt{}, apperrors.NotFound("receipt file not found")
		}
		return Receipt{}, apperrors.Internal("could not open receipt", err)
	}
	return Receipt{Body: body, FileName: charge.ReceiptFileName, ContentType: charge.ReceiptMimeType}, nil
}
