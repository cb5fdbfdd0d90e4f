package catalog

import (
	"fmt"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const (
	mysqlPort = 3306
	mysqlHome = "$HOME/mysql"
)

// mysqlService runs a MySQL server with its datadir and socket directory
// on shared storage. The datadir is initialized on first start; the
// compute node itself has no persistent disk.
func mysqlService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	if len(s.Ports) == 0 {
		s.Ports = []int{mysqlPort}
	}
	ensureEnv(&s.Env, "MYSQL_DATABASE", "sbtest")
	defaultSource(s, "docker://mysql:8.0")

	s.Binds = append(s.Binds,
		mysqlHome+"/data:/var/lib/mysql",
		mysqlHome+"/run:/run/mysqld",
	)
	s.SetupFn = func(s *job.Service) []string {
		return []string{
			fmt.Sprintf("mkdir -p %s/data %s/run", mysqlHome, mysqlHome),
			fmt.Sprintf("if [ ! -d %s/data/mysql ]; then", mysqlHome),
			fmt.Sprintf("    apptainer exec --bind %s/data:/var/lib/mysql %s mysqld --initialize-insecure --datadir=/var/lib/mysql", mysqlHome, s.ImagePath()),
			"fi",
		}
	}
	s.CommandFn = func(s *job.Service) string {
		return fmt.Sprintf(
			"apptainer exec --bind %s/data:/var/lib/mysql --bind %s/run:/run/mysqld %s mysqld --datadir=/var/lib/mysql --socket=/run/mysqld/mysqld.sock --bind-address=0.0.0.0",
			mysqlHome, mysqlHome, s.ImagePath())
	}
	return s, nil
}

// mysqlClient benchmarks a MySQL server. The endpoint is a bare host:port
// pair; database drivers take no URL scheme.
func mysqlClient(spec *recipe.ClientSpec, cfg *config.Config) (*job.Client, error) {
	c := job.NewClient(spec, cfg)
	c.DefaultPort = mysqlPort
	c.Prelude = "pip install -q mysql-connector-python"
	return c, nil
}
