// Package restport serves hierarchical network APIs as flat relational
// tables over Apache Arrow Flight, for the DuckDB Airport extension.
//
// A table is declared by a description of the API response (a JSON-schema
// like tree), the request templates that fetch one page, and the addresses
// the pages are fetched from. NewTable discovers the flat column catalog of
// the response; Scan turns the host's pushed-down filters into request
// criteria, walks the pages lazily and streams typed record batches.
//
//	pool := transport.NewPool(transport.Config{})
//	defer pool.Close()
//
//	renderer, _ := render.New(render.Spec{
//	    Path: "/stations?offset={{.Offset}}&limit={{.Limit}}",
//	})
//	stations, err := restport.NewTable(restport.TableDef{
//	    Name:        "stations",
//	    Description: desc,
//	    Addresses:   []string{"https://api.example.com"},
//	    Renderer:    renderer,
//	}, restport.Deps{Transport: pool})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cat, _ := restport.NewCatalogBuilder().
//	    Schema("weather").
//	    Table(stations).
//	    Build()
//
//	config := restport.ServerConfig{Catalog: cat}
//	grpcServer := grpc.NewServer(restport.ServerOptions(config)...)
//	if err := restport.NewServer(grpcServer, config); err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
//
// From DuckDB:
//
//	ATTACH '' AS api (TYPE airport, LOCATION 'grpc://localhost:50051');
//	SELECT * FROM api.weather.stations WHERE region = 'north';
package restport
