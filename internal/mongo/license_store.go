package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"winsbygroup.com/licverify/internal/license"
)

const collectionLicenses = "licenses"

// licenseDoc is the stored shape. hwid and bound_at are absent until bound.
type licenseDoc struct {
	Key         string  `bson:"_id"`
	ProductType string  `bson:"product_type"`
	Active      bool    `bson:"active"`
	HWID        *string `bson:"hwid,omitempty"`
	CreatedAt   string  `bson:"created_at"`
	BoundAt     *string `bson:"bound_at,omitempty"`
}

func (d *licenseDoc) toLicense() *license.License {
	return &license.License{
		LicenseKey:  d.Key,
		ProductType: d.ProductType,
		Active:      d.Active,
		BoundHWID:   d.HWID,
		CreatedAt:   d.CreatedAt,
		BoundAt:     d.BoundAt,
	}
}

type LicenseStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewLicenseStore(db *mongo.Database) *LicenseStore {
	return &LicenseStore{col: db.Collection(collectionLicenses), now: time.Now}
}

var _ license.Store = (*LicenseStore)(nil)

func (s *LicenseStore) FindByKey(ctx context.Context, key string) (*license.License, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc licenseDoc
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	return doc.toLicense(), nil
}

// BindIfUnbound is a single filtered update; the server applies it atomically
// per document, so only one caller can match the "hwid is null" filter.
func (s *LicenseStore) BindIfUnbound(ctx context.Context, key, hwid string) (bool, error) {
	if hwid == "" {
		return false, license.ErrEmptyHWID
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": key, "active": true, "hwid": nil}
	update := bson.M{"$set": bson.M{"hwid": hwid, "bound_at": license.Now(s.now())}}

	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("bind license: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *LicenseStore) Create(ctx context.Context, lic *license.License) error {
	if err := lic.Validate(); err != nil {
		return err
	}
	if lic.CreatedAt == "" {
		lic.CreatedAt = license.Now(s.now())
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.col.InsertOne(ctx, licenseDoc{
		Key:         lic.LicenseKey,
		ProductType: lic.ProductType,
		Active:      lic.Active,
		HWID:        lic.BoundHWID,
		CreatedAt:   lic.CreatedAt,
		BoundAt:     lic.BoundAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", license.ErrDuplicateKey, lic.LicenseKey)
	}
	if err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

func (s *LicenseStore) Stats(ctx context.Context) (license.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var st license.Stats
	counts := []struct {
		dst    *int
		filter bson.M
	}{
		{&st.Total, bson.M{}},
		{&st.Active, bson.M{"active": true}},
		{&st.Bound, bson.M{"hwid": bson.M{"$ne": nil}}},
	}
	for _, c := range counts {
		n, err := s.col.CountDocuments(ctx, c.filter)
		if err != nil {
			return license.Stats{}, fmt.Errorf("count licenses: %w", err)
		}
		*c.dst = int(n)
	}
	return st, nil
}

func (s *LicenseStore) Ping(ctx context.Context) error {
	return s.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the secondary indexes on the licenses collection.
func (s *LicenseStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_type", Value: 1}},
		Options: options.Index().SetName("idx_license_product_type"),
	})
	if err != nil {
		return fmt.Errorf("create license indexes: %w", err)
	}
	return nil
}
