// Package driver connects the ogm package to Neo4j over Bolt using the
// official neo4j Go driver.
//
// A Driver implements ogm.Conn. Each transaction it opens owns a driver
// session, and query results are converted into ogm.Row values holding
// ogm.NodeRecord and ogm.RelRecord.
//
//	cfg, err := ogm.LoadConfig("ogm.yaml")
//	drv, err := driver.Open(cfg.Neo4j, driver.WithLogger(logger))
//	defer drv.Close(ctx)
//	sess := ogm.NewSession(drv, cfg.SessionOptions(logger)...)
package driver
