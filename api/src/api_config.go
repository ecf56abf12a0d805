package main

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/database"
	"github.com/RIKUY-ORG/Rikuy/api/src/report"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultPort                = 3001
	defaultMaxUploadMb         = 10
	defaultChainName           = "Scroll Sepolia"
	defaultChainId             = 534351
	defaultRpcUrl              = "https://sepolia-rpc.scroll.io"
	defaultExplorerUrl         = "https://sepolia.scrollscan.com"
	defaultReservationSeconds  = 600
	defaultCallTimeoutSeconds  = 30
	defaultConfirmationSeconds = 120
	defaultRecordStorePath     = "data/records"
	defaultAIBaseUrl           = "https://api.openai.com/v1"
	defaultIPFSApiUrl          = "http://localhost:5001"
)

type ApiConfigJson struct {
	LoggerConf   logger.LoggerConfigJson    `json:"logger"`
	RabbitmqConf rabbitmq.RabbimqConfigJson `json:"rabbitmq"`
	RestConf     ApiRestConfigJson          `json:"rest"`
	DatabaseConf ApiDatabaseConfigJson      `json:"database"`
	SecurityConf ApiSecurityConfigJson      `json:"security"`
	ChainConf    ApiChainConfigJson         `json:"chain"`
	GeofenceConf ApiGeofenceConfigJson      `json:"geofence"`
	ZkpConf      ApiZkpConfigJson           `json:"zkp"`
	ExternalConf ApiExternalConfigJson      `json:"external"`
	WorkersConf  ApiWorkersConfigJson       `json:"workers"`
}

func (acj ApiConfigJson) ConvertToDomain() ApiConfig {
	return ApiConfig{
		LoggerConf:   acj.LoggerConf.ConvertToDomain(),
		RabbitmqConf: acj.RabbitmqConf.ConvertToDomain(),
		RestConf:     acj.RestConf.ConvertToDomain(),
		DatabaseConf: acj.DatabaseConf.ConvertToDomain(),
		SecurityConf: acj.SecurityConf.ConvertToDomain(),
		ChainConf:    acj.ChainConf.ConvertToDomain(),
		Region:       acj.GeofenceConf.ConvertToDomain(),
		ZkpConf:      acj.ZkpConf.ConvertToDomain(),
		ExternalConf: acj.ExternalConf.ConvertToDomain(),
		WorkersConf:  acj.WorkersConf.ConvertToDomain(),
	}
}

type ApiConfig struct {
	LoggerConf   logger.LoggerConfig
	RabbitmqConf rabbitmq.RabbitmqConfig
	RestConf     ApiRestConfig
	DatabaseConf ApiDatabaseConfig
	SecurityConf ApiSecurityConfig
	ChainConf    ApiChainConfig
	Region       report.Region
	ZkpConf      ApiZkpConfig
	ExternalConf ApiExternalConfig
	WorkersConf  ApiWorkersConfig
}

func (ac ApiConfig) GetLoggerConfig() logger.LoggerConfig {
	return ac.LoggerConf
}

func (ac ApiConfig) GetRabbitmqConfig() rabbitmq.RabbitmqConfig {
	return ac.RabbitmqConf
}

func (ac ApiConfig) GetRestApiPort() uint16 {
	return ac.RestConf.Port
}

func (ac ApiConfig) IsDevMode() bool {
	return ac.SecurityConf.DevMode
}

func (ac ApiConfig) GetDatabaseDriver() string {
	return ac.DatabaseConf.Driver
}

func (ac ApiConfig) GetDatabaseConnectionString() string {
	return ac.DatabaseConf.ConnectionString
}

type ApiRestConfigJson struct {
	Port           uint16   `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	MaxUploadMb    int64    `json:"max_upload_mb"`
}

type ApiRestConfig struct {
	Port           uint16
	AllowedOrigins []string
	MaxUploadBytes int64
}

func (arcj ApiRestConfigJson) ConvertToDomain() ApiRestConfig {
	origins := arcj.AllowedOrigins
	if env := utilities.EnvOr("ALLOWED_ORIGINS", ""); env != "" {
		origins = strings.Split(env, ",")
	}
	return ApiRestConfig{
		Port:           utilities.Ternary(arcj.Port == 0, uint16(defaultPort), arcj.Port),
		AllowedOrigins: origins,
		MaxUploadBytes: utilities.Ternary(arcj.MaxUploadMb <= 0, int64(defaultMaxUploadMb), arcj.MaxUploadMb) << 20,
	}
}

type ApiDatabaseConfigJson struct {
	Driver           string `json:"driver"`
	ConnectionString string `json:"connection_string"`
}

type ApiDatabaseConfig struct {
	Driver           string
	ConnectionString string
}

func (adcj ApiDatabaseConfigJson) ConvertToDomain() ApiDatabaseConfig {
	return ApiDatabaseConfig{
		Driver:           utilities.Ternary(adcj.Driver == "", database.DriverSqlite, adcj.Driver),
		ConnectionString: utilities.EnvOr("DATABASE_URL", adcj.ConnectionString),
	}
}

type ApiSecurityConfigJson struct {
	DevMode                     bool  `json:"dev_mode"`
	NullifierReservationSeconds int64 `json:"nullifier_reservation_seconds"`
}

type ApiSecurityConfig struct {
	DevMode              bool
	NullifierReservation time.Duration
}

func (ascj ApiSecurityConfigJson) ConvertToDomain() ApiSecurityConfig {
	return ApiSecurityConfig{
		DevMode:              utilities.EnvBoolOr("DEV_MODE", ascj.DevMode),
		NullifierReservation: seconds(ascj.NullifierReservationSeconds, defaultReservationSeconds),
	}
}

type ApiContractsConfigJson struct {
	RikuyCore string `json:"rikuy_core"`
	Semaphore string `json:"semaphore"`
	GroupId   string `json:"group_id"`
}

type ApiChainConfigJson struct {
	Name                       string                 `json:"name"`
	ChainId                    int64                  `json:"chain_id"`
	RpcUrl                     string                 `json:"rpc_url"`
	ExplorerUrl                string                 `json:"explorer_url"`
	Contracts                  ApiContractsConfigJson `json:"contracts"`
	MinBalanceWei              string                 `json:"min_balance_wei"`
	CriticalBalanceWei         string                 `json:"critical_balance_wei"`
	ConfirmationTimeoutSeconds int64                  `json:"confirmation_timeout_seconds"`
}

type ApiChainConfig struct {
	Descriptor          chain.Descriptor
	MinBalance          *big.Int
	CriticalBalance     *big.Int
	ConfirmationTimeout time.Duration
}

func (accj ApiChainConfigJson) ConvertToDomain() ApiChainConfig {
	return ApiChainConfig{
		Descriptor: chain.Descriptor{
			Name:        utilities.Ternary(accj.Name == "", defaultChainName, accj.Name),
			ChainId:     big.NewInt(utilities.Ternary(accj.ChainId == 0, int64(defaultChainId), accj.ChainId)),
			RpcUrl:      utilities.EnvOr("RPC_URL", utilities.Ternary(accj.RpcUrl == "", defaultRpcUrl, accj.RpcUrl)),
			ExplorerUrl: utilities.Ternary(accj.ExplorerUrl == "", defaultExplorerUrl, accj.ExplorerUrl),
			RikuyCore:   common.HexToAddress(utilities.EnvOr("RIKUY_CORE_ADDRESS", accj.Contracts.RikuyCore)),
			Semaphore:   common.HexToAddress(utilities.EnvOr("SEMAPHORE_ADDRESS", accj.Contracts.Semaphore)),
			GroupId:     parseBig(utilities.EnvOr("SEMAPHORE_GROUP_ID", accj.Contracts.GroupId)),
		},
		MinBalance:          parseBig(accj.MinBalanceWei),
		CriticalBalance:     parseBig(accj.CriticalBalanceWei),
		ConfirmationTimeout: seconds(accj.ConfirmationTimeoutSeconds, defaultConfirmationSeconds),
	}
}

type ApiGeofenceConfigJson struct {
	LatMin  *float64 `json:"lat_min"`
	LatMax  *float64 `json:"lat_max"`
	LongMin *float64 `json:"long_min"`
	LongMax *float64 `json:"long_max"`
}

// ConvertToDomain falls back to the default region unless every bound is set.
func (agcj ApiGeofenceConfigJson) ConvertToDomain() report.Region {
	if agcj.LatMin == nil || agcj.LatMax == nil || agcj.LongMin == nil || agcj.LongMax == nil {
		return report.DefaultRegion
	}
	return report.Region{LatMin: *agcj.LatMin, LatMax: *agcj.LatMax, LongMin: *agcj.LongMin, LongMax: *agcj.LongMax}
}

type ApiZkpConfigJson struct {
	VerificationKeyPath string `json:"verification_key_path"`
}

type ApiZkpConfig struct {
	VerificationKeyPath string
}

func (azcj ApiZkpConfigJson) ConvertToDomain() ApiZkpConfig {
	return ApiZkpConfig{
		VerificationKeyPath: utilities.EnvOr("VERIFICATION_KEY_PATH", azcj.VerificationKeyPath),
	}
}

type ApiExternalConfigJson struct {
	IPFSApiUrl         string `json:"ipfs_api_url"`
	IPFSGatewayUrl     string `json:"ipfs_gateway_url"`
	AIBaseUrl          string `json:"ai_base_url"`
	AIModel            string `json:"ai_model"`
	RecordStorePath    string `json:"record_store_path"`
	CallTimeoutSeconds int64  `json:"call_timeout_seconds"`
}

type ApiExternalConfig struct {
	IPFSApiUrl      string
	IPFSGatewayUrl  string
	AIBaseUrl       string
	AIModel         string
	RecordStorePath string
	CallTimeout     time.Duration
}

func (aecj ApiExternalConfigJson) ConvertToDomain() ApiExternalConfig {
	return ApiExternalConfig{
		IPFSApiUrl:      utilities.EnvOr("IPFS_API_URL", utilities.Ternary(aecj.IPFSApiUrl == "", defaultIPFSApiUrl, aecj.IPFSApiUrl)),
		IPFSGatewayUrl:  aecj.IPFSGatewayUrl,
		AIBaseUrl:       utilities.Ternary(aecj.AIBaseUrl == "", defaultAIBaseUrl, aecj.AIBaseUrl),
		AIModel:         aecj.AIModel,
		RecordStorePath: utilities.Ternary(aecj.RecordStorePath == "", defaultRecordStorePath, aecj.RecordStorePath),
		CallTimeout:     seconds(aecj.CallTimeoutSeconds, defaultCallTimeoutSeconds),
	}
}

type ApiWorkersConfigJson struct {
	BalanceSchedule string `json:"balance_schedule"`
	OutboxSchedule  string `json:"outbox_schedule"`
}

type ApiWorkersConfig struct {
	BalanceSchedule string
	OutboxSchedule  string
}

func (awcj ApiWorkersConfigJson) ConvertToDomain() ApiWorkersConfig {
	return ApiWorkersConfig{
		BalanceSchedule: awcj.BalanceSchedule,
		OutboxSchedule:  awcj.OutboxSchedule,
	}
}

// Secrets are read from the environment only, never from config.json.
type Secrets struct {
	RelayerPrivateKey string
	EncryptionKey     string
	DocumentPepper    string
	AdminJwtSecret    string
	AIApiKey          string
}

func LoadSecrets() Secrets {
	return Secrets{
		RelayerPrivateKey: utilities.EnvOr("RELAYER_PRIVATE_KEY", ""),
		EncryptionKey:     utilities.EnvOr("IDENTITY_ENCRYPTION_KEY", ""),
		DocumentPepper:    utilities.EnvOr("DOCUMENT_HASH_PEPPER", ""),
		AdminJwtSecret:    utilities.EnvOr("ADMIN_JWT_SECRET", ""),
		AIApiKey:          utilities.EnvOr("AI_API_KEY", ""),
	}
}

func (s Secrets) Validate() error {
	var missing []string
	if s.RelayerPrivateKey == "" {
		missing = append(missing, "RELAYER_PRIVATE_KEY")
	}
	if s.EncryptionKey == "" {
		missing = append(missing, "IDENTITY_ENCRYPTION_KEY")
	}
	if s.DocumentPepper == "" {
		missing = append(missing, "DOCUMENT_HASH_PEPPER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func seconds(v, fallback int64) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// parseBig returns nil for an empty or malformed value so downstream defaults apply.
func parseBig(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil
	}
	return v
}
