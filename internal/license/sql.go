package license

const findLicenseByKeySQL = `
SELECT
    license_key,
    product_type,
    is_active,
    hwid,
    created_at,
    bound_at
FROM license
WHERE license_key = ?
`

// The WHERE clause is the compare-and-swap: only an active, still unbound
// row is updated, so at most one concurrent caller sees RowsAffected = 1.
const bindIfUnboundSQL = `
UPDATE license
SET
    hwid = ?,
    bound_at = ?
WHERE license_key = ?
  AND is_active = 1
  AND hwid IS NULL
`

const createLicenseSQL = `
INSERT INTO license (
    license_key,
    product_type,
    is_active,
    hwid,
    created_at,
    bound_at
) VALUES (?, ?, ?, ?, ?, ?)
`

const countLicensesSQL = `
SELECT
    COUNT(*) AS total,
    COALESCE(SUM(is_active), 0) AS active,
    COUNT(hwid) AS bound
FROM license
`
