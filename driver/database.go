package driver

import (
	"context"
	"fmt"
	"slices"

	"github.com/CaliLuke/go-ogm/ogm"
)

// DatabaseManager provides administrative operations: listing, creating and
// dropping databases, and maintaining the uniqueness constraints the mapper
// relies on.
type DatabaseManager struct {
	driver *Driver
}

// system runs stmt against the system database.
func (dm *DatabaseManager) system(ctx context.Context, stmt string, params map[string]any) ([]ogm.Row, error) {
	d := &Driver{drv: dm.driver.drv, database: "system", logger: dm.driver.logger}
	return dm.run(ctx, d, stmt, params)
}

func (dm *DatabaseManager) run(ctx context.Context, d *Driver, stmt string, params map[string]any) ([]ogm.Row, error) {
	if !dm.driver.IsOpen() {
		return nil, ErrNotConnected
	}
	tx, err := d.BeginWithOptions(ctx, ogm.WriteAccess, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Close(ctx)

	rows, err := tx.Execute(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// All returns the names of all databases on the server, sorted.
func (dm *DatabaseManager) All(ctx context.Context) ([]string, error) {
	rows, err := dm.system(ctx, "SHOW DATABASES YIELD name", nil)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, row := range rows {
		if name, ok := row["name"].(string); ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Contains returns true if a database with the specified name exists on the server.
func (dm *DatabaseManager) Contains(ctx context.Context, name string) (bool, error) {
	names, err := dm.All(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// Create creates a database. Multiple databases need Neo4j Enterprise.
func (dm *DatabaseManager) Create(ctx context.Context, name string) error {
	_, err := dm.system(ctx, "CREATE DATABASE $name IF NOT EXISTS WAIT", map[string]any{"name": name})
	return err
}

// Delete permanently removes the database with the specified name from the server.
func (dm *DatabaseManager) Delete(ctx context.Context, name string) error {
	_, err := dm.system(ctx, "DROP DATABASE $name IF EXISTS WAIT", map[string]any{"name": name})
	return err
}

// EnsureUnique creates a uniqueness constraint on label.prop in the driver's
// database unless one already exists. Labels and property names cannot be
// passed as parameters, so both are validated first.
func (dm *DatabaseManager) EnsureUnique(ctx context.Context, label, prop string) error {
	if err := ogm.ValidateIdentifier(label, "label"); err != nil {
		return err
	}
	if err := ogm.ValidateIdentifier(prop, "property"); err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", label, prop)
	_, err := dm.run(ctx, dm.driver, stmt, nil)
	return err
}

// EnsureModelConstraints creates the id property constraint of every
// registered node model in reg.
func (dm *DatabaseManager) EnsureModelConstraints(ctx context.Context, reg *ogm.Registry) error {
	for _, info := range reg.Models() {
		if info.Kind != ogm.ModelKindNode || len(info.Labels) == 0 {
			continue
		}
		label := info.Labels[len(info.Labels)-1]
		if err := dm.EnsureUnique(ctx, label, info.IDProperty); err != nil {
			return fmt.Errorf("constraint for %s: %w", info.Name, err)
		}
	}
	return nil
}
