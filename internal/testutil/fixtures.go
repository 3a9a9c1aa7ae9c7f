package testutil

import "github.com/leapstack-labs/semql/pkg/mdl"

// TPCH returns a small TPC-H style manifest in catalog "wren", schema
// "tpch":
//
//	orders --many_to_one--> customer --many_to_one--> nation
//
// orders.customer_name and orders.customer_nation reach through the
// relationships, customer.order_count traverses orders_customer the to-many
// way. revenue is a metric over orders and big_orders a view.
func TPCH() *mdl.Manifest {
	return mdl.NewManifestBuilder().
		Catalog("wren").
		Schema("tpch").
		Model(mdl.NewModelBuilder("orders").
			TableReference("orders").
			Column(mdl.NewColumnBuilder("o_orderkey", "integer").NotNull(true).Build()).
			Column(mdl.NewColumnBuilder("o_custkey", "integer").Build()).
			Column(mdl.NewColumnBuilder("o_totalprice", "double").Build()).
			Column(mdl.NewColumnBuilder("customer", "customer").Relationship("orders_customer").Build()).
			Column(mdl.NewColumnBuilder("customer_name", "varchar").Calculated(true).Expression("customer.c_name").Build()).
			Column(mdl.NewColumnBuilder("customer_nation", "varchar").Calculated(true).Expression("customer.nation_name").Build()).
			Column(mdl.NewColumnBuilder("double_price", "double").Calculated(true).Expression("o_totalprice * 2").Build()).
			PrimaryKey("o_orderkey").
			Build()).
		Model(mdl.NewModelBuilder("customer").
			TableReference("customer").
			Column(mdl.NewColumnBuilder("c_custkey", "integer").NotNull(true).Build()).
			Column(mdl.NewColumnBuilder("c_name", "varchar").Build()).
			Column(mdl.NewColumnBuilder("c_nationkey", "integer").Build()).
			Column(mdl.NewColumnBuilder("nation", "nation").Relationship("customer_nation").Build()).
			Column(mdl.NewColumnBuilder("nation_name", "varchar").Calculated(true).Expression("nation.n_name").Build()).
			Column(mdl.NewColumnBuilder("orders", "orders").Relationship("orders_customer").Build()).
			Column(mdl.NewColumnBuilder("order_count", "bigint").Calculated(true).Expression("count(orders.o_orderkey)").Build()).
			PrimaryKey("c_custkey").
			Build()).
		Model(mdl.NewModelBuilder("nation").
			TableReference("nation").
			Column(mdl.NewColumnBuilder("n_nationkey", "integer").NotNull(true).Build()).
			Column(mdl.NewColumnBuilder("n_name", "varchar").Build()).
			PrimaryKey("n_nationkey").
			Build()).
		Relationship(mdl.NewRelationshipBuilder("orders_customer").
			Model("orders").Model("customer").
			JoinType(mdl.ManyToOne).
			Condition("orders.o_custkey = customer.c_custkey").
			Build()).
		Relationship(mdl.NewRelationshipBuilder("customer_nation").
			Model("customer").Model("nation").
			JoinType(mdl.ManyToOne).
			Condition("customer.c_nationkey = nation.n_nationkey").
			Build()).
		Metric(mdl.NewMetricBuilder("revenue", "orders").
			Dimension(mdl.NewColumnBuilder("o_custkey", "integer").Build()).
			Measure(mdl.NewColumnBuilder("total", "double").Expression("sum(o_totalprice)").Build()).
			Build()).
		View(mdl.NewViewBuilder("big_orders").
			Statement("SELECT o_orderkey, o_totalprice FROM orders WHERE o_totalprice > 100").
			Build()).
		Build()
}

// TPCHJSON is TPCH in its JSON form, for loaders and HTTP handlers.
const TPCHJSON = `{
  "catalog": "wren",
  "schema": "tpch",
  "models": [
    {
      "name": "orders",
      "tableReference": {"table": "orders"},
      "columns": [
        {"name": "o_orderkey", "type": "integer", "notNull": true},
        {"name": "o_custkey", "type": "integer"},
        {"name": "o_totalprice", "type": "double"},
        {"name": "customer", "type": "customer", "relationship": "orders_customer"},
        {"name": "customer_name", "type": "varchar", "isCalculated": true, "expression": "customer.c_name"}
      ],
      "primaryKey": "o_orderkey"
    },
    {
      "name": "customer",
      "tableReference": {"table": "customer"},
      "columns": [
        {"name": "c_custkey", "type": "integer", "notNull": 1},
        {"name": "c_name", "type": "varchar"}
      ],
      "primaryKey": "c_custkey"
    }
  ],
  "relationships": [
    {
      "name": "orders_customer",
      "models": ["orders", "customer"],
      "joinType": "many_to_one",
      "condition": "orders.o_custkey = customer.c_custkey"
    }
  ]
}`
